package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model in dependency order. Used by AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&User{},
		&UserRole{},
		&Vendor{},
		&Product{},
		&Inventory{},
		&Address{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderLine{},
		&Payment{},
		&Refund{},
		&AuditLog{},
		&OutboxEvent{},
	}
}

// AutoMigrate creates the schema through GORM. Production uses goose migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
