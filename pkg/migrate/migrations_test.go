package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestSchemaMigrationsContainTables(t *testing.T) {
	cases := map[string][]string{
		"create_users_table": {
			"CREATE TABLE IF NOT EXISTS users",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_email_key",
		},
		"create_products_table": {
			"CREATE TABLE IF NOT EXISTS products",
			"auction_closed_at timestamptz",
			"CREATE INDEX IF NOT EXISTS products_open_auctions_idx",
		},
		"create_orders_tables": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CREATE TABLE IF NOT EXISTS order_items",
			"REFERENCES products(id) ON DELETE SET NULL",
		},
		"create_bids_table": {
			"CREATE TABLE IF NOT EXISTS bids",
			"CREATE UNIQUE INDEX IF NOT EXISTS bids_one_winning_per_product_idx",
		},
		"create_reviews_table": {
			"CREATE UNIQUE INDEX IF NOT EXISTS reviews_product_user_key",
			"CHECK (rating BETWEEN 1 AND 5)",
		},
		"create_engagement_tables": {
			"CREATE UNIQUE INDEX IF NOT EXISTS favorites_user_product_key",
			"CREATE TABLE IF NOT EXISTS notifications",
			"CREATE UNIQUE INDEX IF NOT EXISTS addresses_user_text_key",
			"CREATE TABLE IF NOT EXISTS product_reports",
			"CREATE TABLE IF NOT EXISTS product_views",
			"CREATE UNIQUE INDEX IF NOT EXISTS password_reset_tokens_token_key",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Seller Ratings!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_seller_ratings.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}
