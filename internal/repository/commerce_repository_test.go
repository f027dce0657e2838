package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommerceRepoMock(t *testing.T) (*CommerceRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewCommerceRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestCommerceRepositoryOrders(t *testing.T) {
	repo, mock, cleanup := newCommerceRepoMock(t)
	defer cleanup()

	purchased := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	delivered := purchased.Add(72 * time.Hour)
	rows := sqlmock.NewRows([]string{"order_id", "customer_id", "order_status", "order_purchase_timestamp", "order_delivered_customer_date"}).
		AddRow("o1", "c1", "delivered", purchased, delivered).
		AddRow("o2", "c2", "shipped", purchased, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id, customer_id, order_status, order_purchase_timestamp, order_delivered_customer_date")).
		WillReturnRows(rows)

	orders, err := repo.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].OrderDeliveredCustomerDate)
	assert.Equal(t, delivered, *orders[0].OrderDeliveredCustomerDate)
	assert.Nil(t, orders[1].OrderDeliveredCustomerDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommerceRepositoryOrderItemsScansDecimal(t *testing.T) {
	repo, mock, cleanup := newCommerceRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id, product_id, price FROM order_items")).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "price"}).
			AddRow("o1", "p1", "58.90").
			AddRow("o1", "p2", "41.10"))

	items, err := repo.OrderItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, decimal.RequireFromString("58.90").Equal(items[0].Price))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommerceRepositoryLookups(t *testing.T) {
	repo, mock, cleanup := newCommerceRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, COALESCE(product_category_name, '') AS product_category_name FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "product_category_name"}).AddRow("p1", "toys").AddRow("p2", ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT customer_id, customer_state FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "customer_state"}).AddRow("c1", "SP"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id, review_score FROM order_reviews")).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "review_score"}).AddRow("o1", 5))

	products, err := repo.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "", products[1].ProductCategoryName)

	customers, err := repo.Customers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SP", customers[0].CustomerState)

	reviews, err := repo.Reviews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, reviews[0].ReviewScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommerceRepositoryWrapsQueryErrors(t *testing.T) {
	repo, mock, cleanup := newCommerceRepoMock(t)
	defer cleanup()

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers")).WillReturnError(boom)

	_, err := repo.Customers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "query customers")
}
