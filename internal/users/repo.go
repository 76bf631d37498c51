package users

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByLogin matches either the username or the email.
func (r *Repository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	login = strings.TrimSpace(login)
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *Repository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername loads a user by username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// Updates applies a column map to the user.
func (r *Repository) Updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(values).Error
}

// IncrementSales bumps a seller's total_sales counter.
func (r *Repository) IncrementSales(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("total_sales", gorm.Expr("total_sales + ?", quantity)).Error
}

// List returns every user, newest first.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	var rows []models.User
	return rows, r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
}

// Count returns the number of users.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	return count, r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
}

// Delete removes the user and everything they own. Rows are removed explicitly so the
// behavior does not depend on the driver enforcing foreign keys.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	productIDs := db.Model(&models.Product{}).Select("id").Where("seller_id = ?", id)

	steps := []func() error{
		func() error {
			return db.Model(&models.OrderItem{}).Where("product_id IN (?)", productIDs).UpdateColumn("product_id", nil).Error
		},
		func() error {
			return db.Model(&models.OrderItem{}).Where("seller_id = ?", id).UpdateColumn("seller_id", nil).Error
		},
		func() error {
			return db.Model(&models.Order{}).Where("buyer_id = ?", id).UpdateColumn("buyer_id", nil).Error
		},
		func() error { return db.Where("product_id IN (?) OR user_id = ?", productIDs, id).Delete(&models.Bid{}).Error },
		func() error { return db.Where("product_id IN (?) OR user_id = ?", productIDs, id).Delete(&models.Review{}).Error },
		func() error { return db.Where("product_id IN (?) OR user_id = ?", productIDs, id).Delete(&models.Favorite{}).Error },
		func() error { return db.Where("product_id IN (?) OR user_id = ?", productIDs, id).Delete(&models.ProductView{}).Error },
		func() error {
			return db.Where("product_id IN (?) OR reporter_id = ?", productIDs, id).Delete(&models.ProductReport{}).Error
		},
		func() error { return db.Where("user_id = ?", id).Delete(&models.Notification{}).Error },
		func() error { return db.Where("user_id = ?", id).Delete(&models.Address{}).Error },
		func() error { return db.Where("user_id = ?", id).Delete(&models.PasswordResetToken{}).Error },
		func() error { return db.Where("seller_id = ?", id).Delete(&models.Product{}).Error },
		func() error { return db.Where("id = ?", id).Delete(&models.User{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
