package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressBook interface {
	SaveIfMissing(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string) error
	List(ctx context.Context, userID uuid.UUID) ([]addresses.Suggestion, error)
}

type notifier interface {
	NotifyTx(ctx context.Context, tx *gorm.DB, msg notifications.Message) error
}

// Service turns a session cart into an order.
type Service interface {
	Preview(ctx context.Context, ref cart.Ref, buyerID *uuid.UUID) (*Preview, error)
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error)
}

// PlaceOrderInput is the submitted checkout form.
type PlaceOrderInput struct {
	Ref             cart.Ref
	BuyerID         *uuid.UUID
	BuyerName       string `validate:"required,max=200"`
	BuyerEmail      string `validate:"required,email"`
	ShippingAddress string `validate:"required,max=1000"`
}

// Prefill seeds the checkout form for a signed-in buyer.
type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Preview is the checkout page payload.
type Preview struct {
	Items     []cart.Line            `json:"items"`
	Totals    cart.Totals            `json:"totals"`
	Prefill   Prefill                `json:"prefill"`
	Addresses []addresses.Suggestion `json:"addresses"`
}

// ServiceParams groups checkout dependencies.
type ServiceParams struct {
	TX            txRunner
	Repo          Repository
	Cart          cart.Service
	Addresses     addressBook
	Notifications notifier
	Metrics       *metrics.StorefrontMetrics
	Logger        *logger.Logger
}

type service struct {
	tx        txRunner
	repo      Repository
	cart      cart.Service
	addresses addressBook
	notify    notifier
	metrics   *metrics.StorefrontMetrics
	logg      *logger.Logger
	validate  *validator.Validate
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TX == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications required")
	}
	return &service{
		tx:        params.TX,
		repo:      params.Repo,
		cart:      params.Cart,
		addresses: params.Addresses,
		notify:    params.Notifications,
		metrics:   params.Metrics,
		logg:      params.Logger,
		validate:  validator.New(),
	}, nil
}

func (s *service) Preview(ctx context.Context, ref cart.Ref, buyerID *uuid.UUID) (*Preview, error) {
	current, err := s.cart.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}
	lines, err := s.cart.Lines(ctx, current)
	if err != nil {
		return nil, err
	}
	totals, err := s.cart.Totals(ctx, current)
	if err != nil {
		return nil, err
	}

	preview := &Preview{Items: lines, Totals: totals, Addresses: []addresses.Suggestion{}}
	if buyerID != nil {
		buyer, err := s.repo.FindBuyer(ctx, *buyerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}
		if buyer != nil {
			preview.Prefill = Prefill{Name: buyer.Username, Email: buyer.Email}
		}
		if preview.Addresses, err = s.addresses.List(ctx, *buyerID); err != nil {
			return nil, err
		}
	}
	return preview, nil
}

// PlaceOrder re-validates every cart line against locked stock and commits the order, or
// rejects the whole cart with one message per failing line.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error) {
	input.BuyerName = strings.TrimSpace(input.BuyerName)
	input.BuyerEmail = strings.TrimSpace(input.BuyerEmail)
	input.ShippingAddress = strings.TrimSpace(input.ShippingAddress)
	if err := s.validate.Struct(input); err != nil {
		s.metrics.CheckoutRejected("invalid_input")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Please fill all fields.")
	}

	current, err := s.cart.Get(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		s.metrics.CheckoutRejected("empty_cart")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}

	var order models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockProducts(ctx, current.ProductIDs())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
		}
		lines, failures := reserveLines(current, locked)
		if len(failures) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, failures[0]).
				WithDetails(map[string]any{pkgerrors.LinesDetail: failures})
		}

		items, total, err := orderItems(lines)
		if err != nil {
			return err
		}
		order = models.Order{
			BuyerID:         input.BuyerID,
			BuyerName:       input.BuyerName,
			BuyerEmail:      input.BuyerEmail,
			ShippingAddress: input.ShippingAddress,
			TotalCents:      total,
			Status:          enums.OrderStatusPending,
			Items:           items,
		}
		if err := repo.CreateOrder(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for _, line := range lines {
			if line.Product.Stock == nil {
				continue
			}
			ok, err := repo.DecrementStock(ctx, line.Product.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Only %d left of %s (you wanted %d).", *line.Product.Stock, line.Product.Title, line.Quantity))
			}
		}

		sales := salesBySeller(lines)
		for _, sellerID := range sortedSellers(sales) {
			if err := repo.IncrementSales(ctx, sellerID, sales[sellerID]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment seller sales")
			}
			if err := s.notify.NotifyTx(ctx, tx, notifications.Message{
				UserID: sellerID,
				Type:   enums.NotificationTypeOrderPlaced,
				Text:   fmt.Sprintf("New order from %s: %d item(s) sold.", input.BuyerName, sales[sellerID]),
				Link:   "/seller/dashboard",
			}); err != nil {
				return err
			}
		}

		if input.BuyerID != nil {
			if err := s.addresses.SaveIfMissing(ctx, tx, *input.BuyerID, input.ShippingAddress); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			s.metrics.CheckoutRejected("insufficient_stock")
		}
		return nil, err
	}

	s.metrics.OrderPlaced(order.TotalCents)
	if err := s.cart.Clear(ctx, input.Ref); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "order_id", order.ID.String()), "clear cart after checkout failed", err)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"total":    money.Format(order.TotalCents),
			"items":    len(order.Items),
		})
		s.logg.Info(logCtx, "order placed")
	}

	dto := orders.FromModel(&order)
	return &dto, nil
}

func sortedSellers(sales map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(sales))
	for id := range sales {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
