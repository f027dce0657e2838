package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

type fakeReader struct {
	orders    []models.Order
	items     []models.OrderItem
	products  []models.Product
	customers []models.Customer
	reviews   []models.Review
	err       error
}

func (f *fakeReader) Orders(context.Context) ([]models.Order, error) { return f.orders, f.err }

func (f *fakeReader) OrderItems(context.Context) ([]models.OrderItem, error) { return f.items, nil }

func (f *fakeReader) Products(context.Context) ([]models.Product, error) { return f.products, nil }

func (f *fakeReader) Customers(context.Context) ([]models.Customer, error) { return f.customers, nil }

func (f *fakeReader) Reviews(context.Context) ([]models.Review, error) { return f.reviews, nil }

func TestSQLSourceLoad(t *testing.T) {
	purchased := time.Date(2023, 4, 1, 8, 0, 0, 0, time.UTC)
	reader := &fakeReader{
		orders:   []models.Order{{OrderID: "o1", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: purchased}},
		items:    []models.OrderItem{{OrderID: "o1", ProductID: "p1", Price: decimal.NewFromInt(12)}},
		products: []models.Product{{ProductID: "p1", ProductCategoryName: "toys"}},
		reviews:  []models.Review{{OrderID: "o1", ReviewScore: 4}},
	}

	snap, err := NewSQLSource(reader, "postgres", models.OrderStatusDelivered, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "postgres", snap.Source)
	require.Equal(t, 1, snap.Sales.Len())
	assert.Equal(t, 4, snap.Sales.Rows[0].Month)
	assert.True(t, snap.Sales.HasColumn(models.ColOrderDeliveredCustomerDate))
	assert.ElementsMatch(t, models.CustomerColumns, snap.Customers.Columns)
}

func TestSQLSourcePropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewSQLSource(&fakeReader{err: boom}, "sqlite", "", nil).Load(context.Background())
	assert.ErrorIs(t, err, boom)
}
