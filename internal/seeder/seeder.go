// Package seeder populates the stores with demo data for local development.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	modulesservice "github.com/dr-roshyara/public-digit-sub008/internal/modules/service"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// Seeder registers the demo module, installs it for a demo tenant, and walks
// a handful of credentials through the lifecycle so the API has data to show.
type Seeder struct {
	modules     *modulesservice.Service
	credentials *credservice.Service
	logger      *slog.Logger
}

// New creates a new seeder.
func New(modules *modulesservice.Service, credentials *credservice.Service, logger *slog.Logger) *Seeder {
	return &Seeder{
		modules:     modules,
		credentials: credentials,
		logger:      logger,
	}
}

// SeedAll populates the stores with demo data. Re-running against a store
// that already holds the demo module is fine; registration conflicts are
// ignored.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	tenantID, err := s.seedModule(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed module: %w", err)
	}

	issued, err := s.seedCredentials(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to seed credentials: %w", err)
	}

	s.logger.Info("demo data seeded successfully",
		"tenant_id", tenantID,
		"credentials", issued,
	)
	return nil
}

func (s *Seeder) seedModule(ctx context.Context) (id.TenantID, error) {
	tenantID := id.TenantID(uuid.New())

	if _, err := s.modules.RegisterModule(ctx, "digital_card"); err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeConflict {
			return id.TenantID{}, err
		}
	}
	if _, err := s.modules.InstallModule(ctx, tenantID, "digital_card"); err != nil {
		return id.TenantID{}, err
	}
	return tenantID, nil
}

func (s *Seeder) seedCredentials(ctx context.Context, tenantID id.TenantID) (int, error) {
	admin := id.AdminID(uuid.New())
	soon := time.Now().Add(30 * 24 * time.Hour)

	demoMembers := []struct {
		activate bool
		revoke   string
		expires  *time.Time
	}{
		{activate: true},
		{activate: true, expires: &soon},
		{activate: false},
		{activate: true, revoke: "card reported lost"},
		{activate: false},
	}

	for _, m := range demoMembers {
		c, err := s.credentials.Issue(ctx, credservice.IssueCommand{
			TenantID:  tenantID,
			MemberID:  id.MemberID(uuid.New()),
			IssuedBy:  admin,
			ExpiresAt: m.expires,
		})
		if err != nil {
			return 0, err
		}

		if m.activate {
			if _, err := s.credentials.Activate(ctx, credservice.ActivateCommand{
				TenantID:     tenantID,
				CredentialID: c.ID,
				ActivatedBy:  admin,
			}); err != nil {
				return 0, err
			}
		}
		if m.revoke != "" {
			if _, err := s.credentials.Revoke(ctx, credservice.RevokeCommand{
				TenantID:     tenantID,
				CredentialID: c.ID,
				RevokedBy:    admin,
				Reason:       m.revoke,
			}); err != nil {
				return 0, err
			}
		}
	}

	return len(demoMembers), nil
}
