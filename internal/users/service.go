package users

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service covers account settings and the admin user screens.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, input SettingsInput) (*UserDTO, error)
	List(ctx context.Context) ([]UserDTO, error)
	ToggleAdmin(ctx context.Context, actorID, userID uuid.UUID) (*UserDTO, error)
	ToggleSeller(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateSellerDetails(ctx context.Context, userID uuid.UUID, input SellerDetailsInput) (*UserDTO, error)
	Delete(ctx context.Context, actorID, userID uuid.UUID) error
}

type ServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type service struct {
	db          *db.Client
	repo        *Repository
	passwordCfg config.PasswordConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &service{
		db:          params.DB,
		repo:        NewRepository(params.DB.DB()),
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateSettings(ctx context.Context, userID uuid.UUID, input SettingsInput) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	values := map[string]any{
		"email":                email,
		"business_name":        trimmedOrNil(input.BusinessName),
		"business_description": trimmedOrNil(input.BusinessDescription),
		"phone":                trimmedOrNil(input.Phone),
		"location":             trimmedOrNil(input.Location),
	}

	if input.NewPassword != "" {
		ok, err := security.VerifyPassword(input.CurrentPassword, user.PasswordHash)
		if err != nil || !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Current password is incorrect")
		}
		if !security.ValidatePasswordStrength(input.NewPassword) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, security.PasswordPolicyMessage)
		}
		hash, err := security.HashPassword(input.NewPassword, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		values["password_hash"] = hash
	}

	if err := s.repo.Updates(ctx, userID, values); err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update settings")
	}
	return s.Profile(ctx, userID)
}

func (s *service) List(ctx context.Context) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return FromModels(rows), nil
}

// ToggleAdmin flips the admin flag. Admins cannot demote themselves.
func (s *service) ToggleAdmin(ctx context.Context, actorID, userID uuid.UUID) (*UserDTO, error) {
	if actorID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You cannot change your own admin status")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Updates(ctx, userID, map[string]any{"is_admin": !user.IsAdmin}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle admin")
	}
	return s.Profile(ctx, userID)
}

func (s *service) ToggleSeller(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Updates(ctx, userID, map[string]any{"is_seller": !user.IsSeller}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle seller")
	}
	return s.Profile(ctx, userID)
}

func (s *service) UpdateSellerDetails(ctx context.Context, userID uuid.UUID, input SellerDetailsInput) (*UserDTO, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	values := map[string]any{
		"business_name":        trimmedOrNil(input.BusinessName),
		"business_description": trimmedOrNil(input.BusinessDescription),
		"location":             trimmedOrNil(input.Location),
	}
	if input.Rating != nil {
		if *input.Rating < 0 || *input.Rating > 5 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Rating must be between 0 and 5")
		}
		values["rating"] = *input.Rating
	}
	if err := s.repo.Updates(ctx, userID, values); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update seller details")
	}
	return s.Profile(ctx, userID)
}

func (s *service) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "You cannot delete your own account")
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Delete(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
		}
		return nil
	})
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
