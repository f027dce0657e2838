package loader

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

func rawFixture() Raw {
	purchased := time.Date(2023, time.May, 10, 9, 0, 0, 0, time.UTC)
	delivered := purchased.AddDate(0, 0, 3)
	return Raw{
		Items: models.NewTable(models.TableItems, models.ItemColumns, []models.OrderItem{
			{OrderID: "o1", ProductID: "p1", Price: decimal.NewFromInt(10)},
			{OrderID: "o1", ProductID: "p2", Price: decimal.NewFromInt(5)},
			{OrderID: "o2", ProductID: "p1", Price: decimal.NewFromInt(7)},
		}),
		Orders: models.NewTable(models.TableOrders,
			append(append([]string(nil), models.OrderColumns...), models.ColOrderDeliveredCustomerDate),
			[]models.Order{
				{OrderID: "o1", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: purchased, OrderDeliveredCustomerDate: &delivered},
				{OrderID: "o2", CustomerID: "c2", OrderStatus: "canceled", OrderPurchaseTimestamp: purchased},
			}),
	}
}

func TestBuildSalesFiltersStatus(t *testing.T) {
	sales, stats, err := BuildSales(rawFixture(), models.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, 2, sales.Len())
	assert.Equal(t, models.TableSales, sales.Name)
	assert.Equal(t, 1, stats.DroppedLeft)
	for _, s := range sales.Rows {
		assert.Equal(t, "o1", s.OrderID)
		assert.Equal(t, 2023, s.Year)
		assert.Equal(t, 5, s.Month)
		require.NotNil(t, s.OrderDeliveredCustomerDate)
	}
	assert.ElementsMatch(t, models.SaleColumns, sales.Columns)
}

func TestBuildSalesWithoutDeliveryColumn(t *testing.T) {
	raw := rawFixture()
	raw.Orders = models.NewTable(models.TableOrders, models.OrderColumns, raw.Orders.Rows)

	sales, _, err := BuildSales(raw, "")
	require.NoError(t, err)
	assert.Equal(t, 3, sales.Len())
	assert.False(t, sales.HasColumn(models.ColOrderDeliveredCustomerDate))
}

func TestBuildSalesStatusNeedsColumn(t *testing.T) {
	raw := rawFixture()
	raw.Orders = models.NewTable(models.TableOrders,
		[]string{models.ColOrderID, models.ColOrderPurchaseTimestamp}, raw.Orders.Rows)

	_, _, err := BuildSales(raw, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, appErrors.ErrSchema)
	assert.Contains(t, err.Error(), models.ColOrderStatus)
}

func TestAssembleCarriesMetadata(t *testing.T) {
	loadedAt := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	snap, stats, err := Assemble(rawFixture(), "", "test", loadedAt)
	require.NoError(t, err)
	assert.Equal(t, "test", snap.Source)
	assert.Equal(t, loadedAt, snap.LoadedAt)
	assert.Equal(t, 3, stats.OutputRows)
	assert.Equal(t, 2, snap.Orders.Len())
}
