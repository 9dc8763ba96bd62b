// Package testutil builds migrated in-memory databases and seed rows for
// service tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OpenDB returns a fresh shared-cache sqlite database with every model migrated.
func OpenDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, err := db.Open(sqlite.Open("file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Client wraps conn as the transaction runner services expect.
func Client(conn *gorm.DB) *db.Client {
	return db.NewFromConn(conn)
}

// CreateUser inserts an active user holding roles.
func CreateUser(t *testing.T, conn *gorm.DB, roles ...enums.Role) models.User {
	t.Helper()
	user := models.User{
		Email:    uuid.NewString() + "@example.com",
		Name:     "Test User",
		IsActive: true,
	}
	require.NoError(t, conn.Create(&user).Error)
	for _, role := range roles {
		require.NoError(t, conn.Create(&models.UserRole{UserID: user.ID, Role: role}).Error)
	}
	return user
}

// CreateVendor inserts a merchant user with a vendor profile.
func CreateVendor(t *testing.T, conn *gorm.DB, storeName string) (models.User, models.Vendor) {
	t.Helper()
	user := CreateUser(t, conn, enums.RoleMerchant)
	vendor := models.Vendor{UserID: user.ID, StoreName: storeName}
	require.NoError(t, conn.Create(&vendor).Error)
	return user, vendor
}

// CreateProduct inserts an active product priced at price with stock units on hand.
func CreateProduct(t *testing.T, conn *gorm.DB, vendorID uuid.UUID, title, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		VendorID:  vendorID,
		Title:     title,
		SKU:       "SKU-" + uuid.NewString()[:8],
		BasePrice: decimal.RequireFromString(price),
		IsActive:  true,
	}
	require.NoError(t, conn.Create(&product).Error)
	require.NoError(t, conn.Create(&models.Inventory{ProductID: product.ID, Quantity: stock}).Error)
	return product
}

// CreateAddress inserts a default address owned by userID.
func CreateAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()
	address := models.Address{
		UserID:     userID,
		FullName:   "Test Buyer",
		Phone:      "+910000000000",
		Line1:      "1 Market Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		IsDefault:  true,
	}
	require.NoError(t, conn.Create(&address).Error)
	return address
}

// AddToCart puts qty units of productID in the user's cart, creating the cart if needed.
func AddToCart(t *testing.T, conn *gorm.DB, userID, productID uuid.UUID, qty int) {
	t.Helper()
	var cart models.Cart
	require.NoError(t, conn.Where(models.Cart{UserID: userID}).FirstOrCreate(&cart).Error)
	require.NoError(t, conn.Create(&models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}).Error)
}

// StockOf reads the inventory quantity for productID.
func StockOf(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var inv models.Inventory
	require.NoError(t, conn.Where("product_id = ?", productID).First(&inv).Error)
	return inv.Quantity
}

// CreateOrder inserts an order for userID with one line of qty units of
// product at its base price. Tax and shipping are zero so Total equals the line total.
func CreateOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, product models.Product, qty int, status enums.OrderStatus) models.Order {
	t.Helper()
	address := CreateAddress(t, conn, userID)
	total := product.BasePrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	order := models.Order{
		UserID:       userID,
		AddressID:    address.ID,
		OrderNumber:  "ORD-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		Subtotal:     total,
		Tax:          decimal.Zero,
		ShippingCost: decimal.Zero,
		Total:        total,
		Status:       status,
		Lines: []models.OrderLine{{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Title:     product.Title,
			SKU:       product.SKU,
			UnitPrice: product.BasePrice,
			Quantity:  qty,
		}},
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}
