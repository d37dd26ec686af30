package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// TestContext holds state between test steps.
type TestContext struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client

	LastResponse     *http.Response
	LastResponseBody []byte

	TenantID     string
	MemberID     string
	CredentialID string
	BatchID      string
	ActorID      string
}

// NewTestContext creates a new test context. Each scenario gets a fresh
// tenant so runs do not interfere with each other or with earlier runs.
func NewTestContext() *TestContext {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	adminToken := os.Getenv("E2E_ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "dev-admin-token-change-in-production"
	}

	return &TestContext{
		BaseURL:    baseURL,
		AdminToken: adminToken,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		TenantID:   uuid.NewString(),
		ActorID:    uuid.NewString(),
	}
}

// Reset gives the context a fresh tenant and clears captured state so each
// scenario starts isolated.
func (tc *TestContext) Reset() {
	tc.LastResponse = nil
	tc.LastResponseBody = nil
	tc.TenantID = uuid.NewString()
	tc.MemberID = ""
	tc.CredentialID = ""
	tc.BatchID = ""
}

// POST makes an admin-authenticated POST request and stores the response.
func (tc *TestContext) POST(path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tc.setAdminHeaders(req)

	return tc.do(req)
}

// GET makes an admin-authenticated GET request and stores the response.
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequestWithContext(context.Background(), "GET", tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	tc.setAdminHeaders(req)

	return tc.do(req)
}

func (tc *TestContext) setAdminHeaders(req *http.Request) {
	req.Header.Set("X-Admin-Token", tc.AdminToken)
	req.Header.Set("X-Admin-Actor-ID", tc.ActorID)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response: %s", field, tc.LastResponseBody)
	}
	return value, nil
}

// GetResponseStringField extracts a top-level string field from the response.
func (tc *TestContext) GetResponseStringField(field string) (string, error) {
	value, err := tc.GetResponseField(field)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %s is not a string: %v", field, value)
	}
	return s, nil
}
