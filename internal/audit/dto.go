package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
)

// LogEntry is the API view of an audit_logs row.
type LogEntry struct {
	ID        uuid.UUID     `json:"id"`
	UserID    *uuid.UUID    `json:"user_id,omitempty"`
	Action    string        `json:"action"`
	Entity    string        `json:"entity"`
	EntityID  string        `json:"entity_id"`
	OldValue  dbtypes.JSONB `json:"old_value,omitempty"`
	NewValue  dbtypes.JSONB `json:"new_value,omitempty"`
	IPAddress *string       `json:"ip_address,omitempty"`
	UserAgent *string       `json:"user_agent,omitempty"`
	RequestID *string       `json:"request_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func toLogEntries(rows []models.AuditLog) []LogEntry {
	out := make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, LogEntry{
			ID:        row.ID,
			UserID:    row.UserID,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			OldValue:  row.OldValue,
			NewValue:  row.NewValue,
			IPAddress: row.IPAddress,
			UserAgent: row.UserAgent,
			RequestID: row.RequestID,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}
