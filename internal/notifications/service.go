package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListLimit caps how many notifications a listing returns.
const ListLimit = 50

// Message is a notification about to be delivered.
type Message struct {
	UserID uuid.UUID
	Type   enums.NotificationType
	Text   string
	Link   string
}

// Service defines notification delivery and inbox operations.
type Service interface {
	Notify(ctx context.Context, msg Message) error
	NotifyTx(ctx context.Context, tx *gorm.DB, msg Message) error
	List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteReadOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error)
}

type service struct {
	repo Repository
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Notify(ctx context.Context, msg Message) error {
	return s.NotifyTx(ctx, nil, msg)
}

// NotifyTx writes the notification inside tx so it commits or rolls back with the caller.
func (s *service) NotifyTx(ctx context.Context, tx *gorm.DB, msg Message) error {
	if msg.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient required")
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification message required")
	}
	row := &models.Notification{
		UserID:  msg.UserID,
		Type:    msg.Type,
		Message: text,
	}
	if link := strings.TrimSpace(msg.Link); link != "" {
		row.Link = &link
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.List(ctx, userID, ListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

// DeleteReadOlderThan purges read notifications created before now-age.
func (s *service) DeleteReadOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention age must be positive")
	}
	deleted, err := s.repo.DeleteReadBefore(ctx, now.Add(-age))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete old notifications")
	}
	return deleted, nil
}
