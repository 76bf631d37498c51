package addresses

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SuggestLimit caps address suggestions.
const SuggestLimit = 8

// Suggestion is one saved address offered during checkout.
type Suggestion struct {
	ID      uuid.UUID `json:"id"`
	Address string    `json:"address"`
	Label   *string   `json:"label,omitempty"`
}

type Service interface {
	SaveIfMissing(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string) error
	List(ctx context.Context, userID uuid.UUID) ([]Suggestion, error)
	Suggest(ctx context.Context, userID uuid.UUID, q string) ([]Suggestion, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) repo(tx *gorm.DB) *Repository {
	if tx != nil {
		return NewRepository(tx)
	}
	return NewRepository(s.db)
}

// SaveIfMissing stores text in the address book; duplicates and blanks are ignored.
func (s *service) SaveIfMissing(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string) error {
	text = strings.TrimSpace(text)
	if userID == uuid.Nil || text == "" {
		return nil
	}
	if err := s.repo(tx).SaveIfMissing(ctx, userID, text); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]Suggestion, error) {
	rows, err := s.repo(nil).List(ctx, userID, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return toSuggestions(rows), nil
}

// Suggest returns saved addresses matching q. An empty q lists the most recent ones.
func (s *service) Suggest(ctx context.Context, userID uuid.UUID, q string) ([]Suggestion, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	q = strings.ToLower(strings.TrimSpace(q))
	repo := s.repo(nil)
	var (
		rows []models.Address
		err  error
	)
	if q == "" {
		rows, err = repo.List(ctx, userID, SuggestLimit)
	} else {
		rows, err = repo.Search(ctx, userID, q, SuggestLimit)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suggest addresses")
	}
	return toSuggestions(rows), nil
}
