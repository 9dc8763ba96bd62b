// Package recorder holds in-memory audit and outbox helpers for service tests.
package recorder

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Audit keeps audit entries in memory.
type Audit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *Audit) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Actions returns the recorded actions in order.
func (r *Audit) Actions() []enums.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.AuditAction, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

// Entries returns a copy of everything recorded.
func (r *Audit) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

// Outbox returns an emitter writing to the outbox_events table.
func Outbox(conn *gorm.DB) *outbox.Service {
	return outbox.NewService(outbox.NewRepository(conn), logger.Nop())
}

// OutboxEvents lists queued events of eventType, oldest first.
func OutboxEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}
