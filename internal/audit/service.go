package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Entry is one privileged state transition to append to the trail.
type Entry struct {
	UserID   *uuid.UUID
	Action   enums.AuditAction
	Entity   enums.AuditEntity
	EntityID string
	OldValue any
	NewValue any
}

// Recorder appends audit entries. Record never fails the caller: it runs
// after the primary transaction has committed.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Filter narrows an audit log listing.
type Filter struct {
	UserID   *uuid.UUID
	Entity   string
	EntityID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

type failureCounter interface {
	IncAuditFailure()
}

// Service is the audit sink backed by the audit_logs table.
type Service struct {
	base     repo.Base
	logg     *logger.Logger
	failures failureCounter
}

// NewService builds the audit sink. failures may be nil.
func NewService(db *gorm.DB, logg *logger.Logger, failures failureCounter) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("audit db required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{base: repo.NewBase(db), logg: logg, failures: failures}, nil
}

// Record writes entry on its own connection. Failures are logged and counted.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if ctx == nil {
		ctx = context.Background()
	}
	row, err := s.buildRow(ctx, entry)
	if err == nil {
		err = s.base.DB(context.WithoutCancel(ctx)).Create(row).Error
	}
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"audit_action": entry.Action,
			"audit_entity": entry.Entity,
			"entity_id":    entry.EntityID,
		})
		s.logg.Error(logCtx, "audit write failed", err)
		if s.failures != nil {
			s.failures.IncAuditFailure()
		}
	}
}

func (s *Service) buildRow(ctx context.Context, entry Entry) (*models.AuditLog, error) {
	oldValue, err := marshalOptional(entry.OldValue)
	if err != nil {
		return nil, fmt.Errorf("encode old value: %w", err)
	}
	newValue, err := marshalOptional(entry.NewValue)
	if err != nil {
		return nil, fmt.Errorf("encode new value: %w", err)
	}
	meta := RequestMetaFrom(ctx)
	return &models.AuditLog{
		UserID:    entry.UserID,
		Action:    string(entry.Action),
		Entity:    string(entry.Entity),
		EntityID:  entry.EntityID,
		OldValue:  oldValue,
		NewValue:  newValue,
		IPAddress: optionalString(meta.IPAddress),
		UserAgent: optionalString(meta.UserAgent),
		RequestID: optionalString(meta.RequestID),
	}, nil
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]LogEntry, error) {
	query := s.base.DB(ctx).Model(&models.AuditLog{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if entity := strings.TrimSpace(filter.Entity); entity != "" {
		query = query.Where("entity = ?", entity)
	}
	if entityID := strings.TrimSpace(filter.EntityID); entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", filter.To.UTC())
	}

	var rows []models.AuditLog
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(normalizeLimit(filter.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}
	return toLogEntries(rows), nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func marshalOptional(v any) (dbtypes.JSONB, error) {
	if v == nil {
		return nil, nil
	}
	return dbtypes.MarshalJSONB(v)
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
