package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	minUsernameLength = 3

	duplicateAccountMessage = "Username or email already exists"
)

// Roles are the privilege flags set at creation. Public sign-up always uses the zero value.
type Roles struct {
	Admin  bool
	Seller bool
}

// RegisterService creates accounts. Register backs the public form; Provision is for
// operator tooling that needs admin or seller accounts up front.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Provision(ctx context.Context, req RegisterRequest, roles Roles) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
	validate    *validator.Validate
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		validate:    validator.New(),
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	return s.create(ctx, req, Roles{})
}

func (s *registerService) Provision(ctx context.Context, req RegisterRequest, roles Roles) (*users.UserDTO, error) {
	return s.create(ctx, req, roles)
}

// create validates and inserts a user. Uniqueness is checked up front and again through
// the unique indexes so concurrent sign-ups still answer CONFLICT.
func (s *registerService) create(ctx context.Context, in RegisterRequest, roles Roles) (*users.UserDTO, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if utf8.RuneCountInString(username) < minUsernameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Username must be at least 3 characters")
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please enter a valid email address")
	}
	if !security.ValidatePasswordStrength(in.Password) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, security.PasswordPolicyMessage)
	}

	passwordHash, err := security.HashPassword(in.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		taken, err := userRepo.ExistsByUsernameOrEmail(ctx, username, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing account")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, duplicateAccountMessage)
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			IsAdmin:      roles.Admin,
			IsSeller:     roles.Seller,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, duplicateAccountMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
