package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	"github.com/dr-roshyara/public-digit-sub008/internal/credential/store"
	modulesservice "github.com/dr-roshyara/public-digit-sub008/internal/modules/service"
	modulesstore "github.com/dr-roshyara/public-digit-sub008/internal/modules/store"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	adminmw "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/admin"
)

const adminToken = "secret-token"

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	tenantID id.TenantID
	adminID  id.AdminID
}

func (s *HandlerSuite) SetupTest() {
	s.tenantID = id.TenantID(uuid.New())
	s.adminID = id.AdminID(uuid.New())

	modules := modulesservice.New(modulesstore.NewInMemory())
	ctx := s.T().Context()
	_, err := modules.RegisterModule(ctx, service.DefaultModuleName)
	s.Require().NoError(err)
	_, err = modules.InstallModule(ctx, s.tenantID, service.DefaultModuleName)
	s.Require().NoError(err)

	svc := service.New(store.NewInMemory(), modules)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Use(adminmw.RequireAdminToken(adminToken, logger))
	h.Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Admin-Token", adminToken)
	req.Header.Set("X-Admin-Actor-ID", s.adminID.String())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) issue() map[string]any {
	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials", s.tenantID),
		map[string]string{"member_id": uuid.New().String()},
	)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *HandlerSuite) TestAdminTokenRequired() {
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s", s.tenantID, uuid.New()), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code, "expected 401 when admin token missing")
}

func (s *HandlerSuite) TestIssueAndGet() {
	created := s.issue()
	s.Equal("issued", created["status"])

	rec := s.do(http.MethodGet,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s", s.tenantID, created["id"]), nil)
	s.Equal(http.StatusOK, rec.Code)

	var got map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(created["id"], got["id"])
	s.Equal(s.adminID.String(), got["issued_by"])
}

func (s *HandlerSuite) TestIssueValidation() {
	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials", s.tenantID),
		map[string]string{},
	)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestActivateFlow() {
	created := s.issue()

	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/activate", s.tenantID, created["id"]), nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var activated map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &activated))
	s.Equal("active", activated["status"])

	// Activating again is an invalid transition.
	rec = s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/activate", s.tenantID, created["id"]), nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *HandlerSuite) TestDuplicateActiveConflict() {
	memberID := uuid.New().String()

	var ids []string
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost,
			fmt.Sprintf("/admin/tenants/%s/credentials", s.tenantID),
			map[string]string{"member_id": memberID},
		)
		s.Require().Equal(http.StatusCreated, rec.Code)
		var out map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
		ids = append(ids, out["id"].(string))
	}

	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/activate", s.tenantID, ids[0]), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/activate", s.tenantID, ids[1]), nil)
	s.Equal(http.StatusConflict, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("duplicate_active_credential", body["error"])
}

func (s *HandlerSuite) TestRevoke() {
	created := s.issue()

	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/revoke", s.tenantID, created["id"]),
		map[string]string{"reason": "lost card"},
	)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var revoked map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &revoked))
	s.Equal("revoked", revoked["status"])
	s.Equal("lost card", revoked["revocation_reason"])
}

func (s *HandlerSuite) TestRevokeRequiresReason() {
	created := s.issue()

	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials/%s/revoke", s.tenantID, created["id"]),
		map[string]string{},
	)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestModuleNotInstalled() {
	rec := s.do(http.MethodPost,
		fmt.Sprintf("/admin/tenants/%s/credentials", uuid.New()),
		map[string]string{"member_id": uuid.New().String()},
	)
	s.Equal(http.StatusForbidden, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("module_not_installed", body["error"])
}
