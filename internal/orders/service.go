package orders

import (
	"context"
	"errors"
	"io"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the read side of orders; creation happens in checkout.
type Service interface {
	Confirmation(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]OrderDTO, error)
	AdminList(ctx context.Context, params pagination.Params) (*OrderList, error)
	AdminDetail(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	ExportXLSX(ctx context.Context, w io.Writer) error
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := FromModel(order)
	return &dto, nil
}

// Confirmation shows an order to its buyer or an admin. Other viewers get NOT_FOUND so
// order ids cannot be probed.
func (s *service) Confirmation(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*OrderDTO, error) {
	dto, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewer.IsAdmin {
		return dto, nil
	}
	if dto.BuyerID == nil || *dto.BuyerID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return dto, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return FromModels(rows), nil
}

func (s *service) AdminList(ctx context.Context, params pagination.Params) (*OrderList, error) {
	rows, total, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Orders: FromModels(rows), Page: pagination.NewPage(params, total)}, nil
}

func (s *service) AdminDetail(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	return s.load(ctx, orderID)
}

func (s *service) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	ok, err := s.repo.HasPurchased(ctx, userID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
	}
	return ok, nil
}
