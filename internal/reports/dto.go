package reports

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// ReportDTO is a report row on the admin screen.
type ReportDTO struct {
	ID           uuid.UUID          `json:"id"`
	ProductID    uuid.UUID          `json:"product_id"`
	ProductTitle string             `json:"product_title,omitempty"`
	ReporterID   uuid.UUID          `json:"reporter_id"`
	Reporter     string             `json:"reporter,omitempty"`
	Reason       string             `json:"reason"`
	Status       enums.ReportStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
}

func fromModel(m *models.ProductReport) ReportDTO {
	dto := ReportDTO{
		ID:         m.ID,
		ProductID:  m.ProductID,
		ReporterID: m.ReporterID,
		Reason:     m.Reason,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
	}
	if m.Product != nil {
		dto.ProductTitle = m.Product.Title
	}
	if m.Reporter != nil {
		dto.Reporter = m.Reporter.Username
	}
	return dto
}

func fromModels(rows []models.ProductReport) []ReportDTO {
	out := make([]ReportDTO, 0, len(rows))
	for i := range rows {
		out = append(out, fromModel(&rows[i]))
	}
	return out
}
