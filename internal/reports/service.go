package reports

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

// SubmittedMessage acknowledges a new report.
const SubmittedMessage = "Thank you for your report. We'll review it shortly."

// Service lets shoppers flag listings and admins work the queue.
type Service interface {
	Report(ctx context.Context, productID, reporterID uuid.UUID, reason string) (*ReportDTO, error)
	List(ctx context.Context, status string) ([]ReportDTO, error)
	Resolve(ctx context.Context, reportID uuid.UUID, status string) error
	OpenCount(ctx context.Context) (int64, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reports repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Report(ctx context.Context, productID, reporterID uuid.UUID, reason string) (*ReportDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please provide a reason for reporting.")
	}
	exists, err := s.repo.productExists(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}

	report := &models.ProductReport{ProductID: productID, ReporterID: reporterID, Reason: reason}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create report")
	}
	dto := fromModel(report)
	return &dto, nil
}

// List returns reports with the given status; an empty status lists all of them.
func (s *service) List(ctx context.Context, status string) ([]ReportDTO, error) {
	var filter enums.ReportStatus
	if status = strings.TrimSpace(status); status != "" && status != "all" {
		parsed, err := enums.ParseReportStatus(status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid report status")
		}
		filter = parsed
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reports")
	}
	return fromModels(rows), nil
}

// Resolve closes a report as reviewed or dismissed.
func (s *service) Resolve(ctx context.Context, reportID uuid.UUID, status string) error {
	parsed, err := enums.ParseReportStatus(strings.TrimSpace(status))
	if err != nil || parsed == enums.ReportStatusPending {
		return pkgerrors.New(pkgerrors.CodeValidation, "Status must be reviewed or dismissed.")
	}
	updated, err := s.repo.UpdateStatus(ctx, reportID, parsed)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Report not found")
	}
	return nil
}

func (s *service) OpenCount(ctx context.Context) (int64, error) {
	count, err := s.repo.CountByStatus(ctx, enums.ReportStatusPending)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reports")
	}
	return count, nil
}
