package models

import "github.com/google/uuid"

// ensureID assigns a UUID primary key when the caller left it empty. Keys are generated
// in Go so the same schema works on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for AutoMigrate callers.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Bid{},
		&Review{},
		&Favorite{},
		&Notification{},
		&Address{},
		&ProductReport{},
		&ProductView{},
		&PasswordResetToken{},
	}
}
