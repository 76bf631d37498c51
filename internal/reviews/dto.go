package reviews

import (
	"math"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ReviewDTO is a review as shown on product pages and the moderation queue.
type ReviewDTO struct {
	ID               uuid.UUID  `json:"id"`
	ProductID        uuid.UUID  `json:"product_id"`
	ProductTitle     string     `json:"product_title,omitempty"`
	UserID           uuid.UUID  `json:"user_id"`
	Reviewer         string     `json:"reviewer,omitempty"`
	Rating           int        `json:"rating"`
	Title            *string    `json:"title,omitempty"`
	Body             string     `json:"body"`
	IsApproved       bool       `json:"is_approved"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	SellerResponse   *string    `json:"seller_response,omitempty"`
	SellerResponseAt *time.Time `json:"seller_response_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Stats summarizes approved reviews.
type Stats struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// SubmitInput carries a review form.
type SubmitInput struct {
	ProductID uuid.UUID
	UserID    uuid.UUID
	Rating    int    `validate:"min=1,max=5"`
	Title     string `validate:"max=200"`
	Body      string `validate:"required,max=5000"`
}

// ModerationCounts feeds the admin dashboard.
type ModerationCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Total    int64 `json:"total"`
}

func FromModel(r *models.Review) ReviewDTO {
	dto := ReviewDTO{
		ID:               r.ID,
		ProductID:        r.ProductID,
		UserID:           r.UserID,
		Rating:           r.Rating,
		Title:            r.Title,
		Body:             r.Body,
		IsApproved:       r.IsApproved,
		ApprovedAt:       r.ApprovedAt,
		SellerResponse:   r.SellerResponse,
		SellerResponseAt: r.SellerResponseAt,
		CreatedAt:        r.CreatedAt,
	}
	if r.User != nil {
		dto.Reviewer = r.User.Username
	}
	if r.Product != nil {
		dto.ProductTitle = r.Product.Title
	}
	return dto
}

func FromModels(rows []models.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

func statsFromRow(row statsRow) Stats {
	s := Stats{Count: row.Count}
	if row.Average != nil {
		s.Average = math.Round(*row.Average*10) / 10
	}
	return s
}
