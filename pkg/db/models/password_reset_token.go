package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasswordResetToken is a single-use password reset grant.
type PasswordResetToken struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:password_reset_tokens_user_id_idx"`
	Token     string     `gorm:"column:token;not null;uniqueIndex:password_reset_tokens_token_key"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (t *PasswordResetToken) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Usable reports whether the token can still reset a password at now.
func (t PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
