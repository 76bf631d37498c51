package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	IsAdmin             bool       `json:"is_admin"`
	IsSeller            bool       `json:"is_seller"`
	BusinessName        *string    `json:"business_name,omitempty"`
	BusinessDescription *string    `json:"business_description,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	Location            *string    `json:"location,omitempty"`
	Rating              float64    `json:"rating"`
	TotalSales          int        `json:"total_sales"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsSeller     bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		IsAdmin:             u.IsAdmin,
		IsSeller:            u.IsSeller,
		BusinessName:        u.BusinessName,
		BusinessDescription: u.BusinessDescription,
		Phone:               u.Phone,
		Location:            u.Location,
		Rating:              u.Rating,
		TotalSales:          u.TotalSales,
		LastLoginAt:         u.LastLoginAt,
		CreatedAt:           u.CreatedAt,
	}
}

// FromModels maps a slice of users.
func FromModels(rows []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     strings.TrimSpace(c.Username),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		PasswordHash: c.PasswordHash,
		IsAdmin:      c.IsAdmin,
		IsSeller:     c.IsSeller,
	}
}

// SettingsInput is the account settings form.
type SettingsInput struct {
	Email               string  `json:"email" validate:"required,email"`
	BusinessName        *string `json:"business_name,omitempty"`
	BusinessDescription *string `json:"business_description,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	Location            *string `json:"location,omitempty"`
	CurrentPassword     string  `json:"current_password,omitempty"`
	NewPassword         string  `json:"new_password,omitempty"`
}

// SellerDetailsInput is the admin form for seller profile fields.
type SellerDetailsInput struct {
	BusinessName        *string  `json:"business_name,omitempty"`
	BusinessDescription *string  `json:"business_description,omitempty"`
	Rating              *float64 `json:"rating,omitempty"`
	Location            *string  `json:"location,omitempty"`
}
