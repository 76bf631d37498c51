package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a storefront account. Sellers and admins are regular users with role flags.
type User struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Username            string     `gorm:"column:username;not null;uniqueIndex:users_username_key"`
	Email               string     `gorm:"column:email;not null;uniqueIndex:users_email_key"`
	PasswordHash        string     `gorm:"column:password_hash;not null"`
	IsAdmin             bool       `gorm:"column:is_admin;not null;default:false"`
	IsSeller            bool       `gorm:"column:is_seller;not null;default:false"`
	BusinessName        *string    `gorm:"column:business_name"`
	BusinessDescription *string    `gorm:"column:business_description"`
	Phone               *string    `gorm:"column:phone"`
	Location            *string    `gorm:"column:location"`
	Rating              float64    `gorm:"column:rating;not null;default:0"`
	TotalSales          int        `gorm:"column:total_sales;not null;default:0"`
	LastLoginAt         *time.Time `gorm:"column:last_login_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// DisplayName prefers the business name for sellers.
func (u User) DisplayName() string {
	if u.BusinessName != nil && *u.BusinessName != "" {
		return *u.BusinessName
	}
	return u.Username
}
