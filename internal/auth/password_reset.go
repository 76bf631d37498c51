package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	resetTokenBytes = 32

	// ResetRequestedMessage is returned whether or not the email is registered.
	ResetRequestedMessage = "If that email is registered, a password reset link has been generated."

	invalidResetTokenMessage = "Invalid or expired reset link"
)

// PasswordResetService issues and redeems single-use reset tokens.
type PasswordResetService interface {
	RequestReset(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error)
	ValidateToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) error
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetServiceParams bundles the reset flow dependencies.
type PasswordResetServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
	BaseURL        string
	Logger         *logger.Logger
	Now            func() time.Time
}

type passwordResetService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
	baseURL     string
	ttl         time.Duration
	logg        *logger.Logger
	now         func() time.Time
}

// NewPasswordResetService builds the reset flow. Tokens live for PasswordConfig.ResetTokenTTL,
// one hour when unset.
func NewPasswordResetService(params PasswordResetServiceParams) (PasswordResetService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	ttl := params.PasswordConfig.ResetTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &passwordResetService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		baseURL:     strings.TrimRight(params.BaseURL, "/"),
		ttl:         ttl,
		logg:        params.Logger,
		now:         now,
	}, nil
}

func (s *passwordResetService) RequestReset(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	resp := &ForgotPasswordResponse{Message: ResetRequestedMessage}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}

	user, err := users.NewRepository(s.db.DB()).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	token, err := security.GenerateToken(resetTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	record := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := newResetRepository(s.db.DB()).Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}

	resp.ResetURL = fmt.Sprintf("%s/password/reset/%s", s.baseURL, token)
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "user_id", user.ID.String()), "password reset requested")
	}
	return resp, nil
}

// ValidateToken reports whether token can still be redeemed.
func (s *passwordResetService) ValidateToken(ctx context.Context, token string) error {
	_, err := s.usableToken(ctx, newResetRepository(s.db.DB()), token)
	return err
}

// ResetPassword sets the new password and consumes the token in one transaction.
func (s *passwordResetService) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) error {
	if _, err := s.usableToken(ctx, newResetRepository(s.db.DB()), token); err != nil {
		return err
	}
	if !security.ValidatePasswordStrength(req.Password) {
		return pkgerrors.New(pkgerrors.CodeValidation, security.PasswordPolicyMessage)
	}
	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := newResetRepository(tx)
		record, err := s.usableToken(ctx, repo, token)
		if err != nil {
			return err
		}
		consumed, err := repo.MarkUsed(ctx, record.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reset token")
		}
		if !consumed {
			return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
		}
		if err := users.NewRepository(tx).Updates(ctx, record.UserID, map[string]any{"password_hash": hash}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
		}
		return nil
	})
}

// DeleteStale removes tokens that expired or were already used.
func (s *passwordResetService) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	return newResetRepository(s.db.DB()).DeleteStale(ctx, now)
}

func (s *passwordResetService) usableToken(ctx context.Context, repo *resetRepository, token string) (*models.PasswordResetToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
	}
	record, err := repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reset token")
	}
	if !record.Usable(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
	}
	return record, nil
}

type resetRepository struct {
	db *gorm.DB
}

func newResetRepository(db *gorm.DB) *resetRepository {
	return &resetRepository{db: db}
}

func (r *resetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *resetRepository) FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkUsed stamps used_at only while the token is unused, so a token is redeemed once.
func (r *resetRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *resetRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("used_at IS NOT NULL OR expires_at < ?", now).
		Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
