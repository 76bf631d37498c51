package product

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	inStockClause    = "(products.stock IS NULL OR products.stock > 0)"
	inStockFirstExpr = "CASE WHEN products.stock IS NULL OR products.stock > 0 THEN 0 ELSE 1 END"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindWithSeller loads the product and its seller.
func (r *Repository) FindWithSeller(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Seller").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every listed product that still exists.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	return rows, r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
}

// LockByIDs loads the listed products with a row lock where the dialect supports it.
// Rows come back in id order so concurrent checkouts lock in the same sequence.
func (r *Repository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// DecrementStock lowers finite stock by qty. It reports false when the row had too little left.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateColumns writes the given column values.
func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(values).Error
}

// DeleteProduct removes the product and every row that hangs off it. Order items keep
// their snapshot with the product reference cleared.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Model(&models.OrderItem{}).Where("product_id = ?", id).Update("product_id", nil).Error; err != nil {
		return err
	}
	for _, model := range []any{
		&models.Bid{},
		&models.Review{},
		&models.Favorite{},
		&models.ProductView{},
		&models.ProductReport{},
	} {
		if err := conn.Where("product_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return conn.Delete(&models.Product{}, "id = ?", id).Error
}

// FindUser loads a user row; products only need the role flags.
func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type productListQuery struct {
	Pagination pagination.Params
	Filters    ProductListFilters
}

// ListProductSummaries returns one page of products matching the filters, in-stock first.
func (r *Repository) ListProductSummaries(ctx context.Context, query productListQuery) ([]models.Product, int64, error) {
	qb := r.db.WithContext(ctx).Model(&models.Product{})

	filter := query.Filters
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(products.title) LIKE ? OR LOWER(products.description) LIKE ?)", pattern, pattern)
	}
	if filter.Category != "" {
		qb = qb.Where("products.category = ?", filter.Category)
	}
	if filter.Condition != "" {
		qb = qb.Where("LOWER(products.condition) = ?", string(filter.Condition))
	}
	if filter.PriceMinCents != nil {
		qb = qb.Where("products.price_cents >= ?", *filter.PriceMinCents)
	}
	if filter.PriceMaxCents != nil {
		qb = qb.Where("products.price_cents <= ?", *filter.PriceMaxCents)
	}

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	qb = qb.Preload("Seller").Order(inStockFirstExpr)
	switch filter.Sort {
	case enums.ProductSortPriceLow:
		qb = qb.Order("products.price_cents ASC")
	case enums.ProductSortPriceHigh:
		qb = qb.Order("products.price_cents DESC")
	case enums.ProductSortPopular:
		qb = qb.Order("products.view_count DESC").Order("products.created_at DESC")
	default:
		qb = qb.Order("products.created_at DESC")
	}

	params := query.Pagination.Normalize()
	var rows []models.Product
	err := qb.Order("products.id").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error
	return rows, total, err
}

// Categories lists the distinct non-empty categories.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category <> ''").
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

// Autocomplete matches in-stock products on title, description or category.
func (r *Repository) Autocomplete(ctx context.Context, q string, limit int) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("(LOWER(products.title) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.category) LIKE ?)", pattern, pattern, pattern).
		Where(inStockClause).
		Order("products.view_count DESC").
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Featured returns the newest in-stock products.
func (r *Repository) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Seller").
		Where(inStockClause).
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Popular returns in-stock products that have been viewed, most viewed first.
func (r *Repository) Popular(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where(inStockClause).
		Where("products.view_count > 0").
		Order("products.view_count DESC").
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Related returns random in-stock products from the same category.
func (r *Repository) Related(ctx context.Context, product *models.Product, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Seller").
		Where("products.category = ? AND products.id <> ?", product.Category, product.ID).
		Where(inStockClause).
		Order("RANDOM()").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListBySeller returns a seller's listings, newest first.
func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListAll returns every product with its seller for the admin screen.
func (r *Repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Seller").
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

type siteCounts struct {
	ActiveListings int64
	TotalProducts  int64
	TotalSellers   int64
	TotalUsers     int64
}

// SiteCounts aggregates the home page counters.
func (r *Repository) SiteCounts(ctx context.Context) (siteCounts, error) {
	var out siteCounts
	conn := r.db.WithContext(ctx)
	if err := conn.Model(&models.Product{}).Where(inStockClause).Count(&out.ActiveListings).Error; err != nil {
		return out, err
	}
	if err := conn.Model(&models.Product{}).Count(&out.TotalProducts).Error; err != nil {
		return out, err
	}
	if err := conn.Model(&models.User{}).Where("is_seller = ?", true).Count(&out.TotalSellers).Error; err != nil {
		return out, err
	}
	if err := conn.Model(&models.User{}).Count(&out.TotalUsers).Error; err != nil {
		return out, err
	}
	return out, nil
}

// IncrementViewCount bumps the product's view counter.
func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	return res.RowsAffected == 1, res.Error
}

// ReplaceView drops the user's earlier view of the product and records a fresh one.
func (r *Repository) ReplaceView(ctx context.Context, userID, productID uuid.UUID, at time.Time) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.ProductView{}).Error; err != nil {
		return err
	}
	return conn.Create(&models.ProductView{UserID: userID, ProductID: productID, ViewedAt: at}).Error
}

// TrimViews keeps only the newest keep views for the user.
func (r *Repository) TrimViews(ctx context.Context, userID uuid.UUID, keep int) (int64, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ProductView{}).
		Where("user_id = ?", userID).
		Order("viewed_at DESC").
		Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil || len(ids) <= keep {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids[keep:]).Delete(&models.ProductView{})
	return res.RowsAffected, res.Error
}

// RecentlyViewed returns the user's viewed products. inStockOnly drops sold-out items;
// otherwise sold-out items sort after in-stock ones.
func (r *Repository) RecentlyViewed(ctx context.Context, userID uuid.UUID, limit int, inStockOnly bool) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).
		Preload("Seller").
		Joins("JOIN product_views ON product_views.product_id = products.id").
		Where("product_views.user_id = ?", userID)
	if inStockOnly {
		qb = qb.Where(inStockClause)
	} else {
		qb = qb.Order(inStockFirstExpr)
	}
	var rows []models.Product
	err := qb.Order("product_views.viewed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// DeleteViewsBefore purges view history older than cutoff.
func (r *Repository) DeleteViewsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("viewed_at < ?", cutoff).Delete(&models.ProductView{})
	return res.RowsAffected, res.Error
}
