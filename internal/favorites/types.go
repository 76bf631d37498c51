package favorites

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// FavoriteDTO is one saved product.
type FavoriteDTO struct {
	ProductID  uuid.UUID `json:"product_id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
	Category   string    `json:"category"`
	ImageURL   *string   `json:"image_url,omitempty"`
	InStock    bool      `json:"in_stock"`
	IsAuction  bool      `json:"is_auction"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDTOs(rows []models.Favorite) []FavoriteDTO {
	out := make([]FavoriteDTO, 0, len(rows))
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		p := row.Product
		out = append(out, FavoriteDTO{
			ProductID:  p.ID,
			Title:      p.Title,
			PriceCents: p.PriceCents,
			Price:      money.Format(p.PriceCents),
			Category:   p.Category,
			ImageURL:   p.ImageURL,
			InStock:    p.InStock(),
			IsAuction:  p.IsAuction,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out
}
