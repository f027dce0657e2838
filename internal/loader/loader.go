package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

// Source produces a complete snapshot of the five input tables.
type Source interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Name() string
}

// Raw holds the tables as read from a source, before the sales table is derived.
type Raw struct {
	Items     models.Table[models.OrderItem]
	Orders    models.Table[models.Order]
	Products  models.Table[models.Product]
	Customers models.Table[models.Customer]
	Reviews   models.Table[models.Review]
}

// Timestamp layouts accepted for timestamp columns, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a source timestamp. Values without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// BuildSales joins line items with their orders, keeps the orders whose status equals status and
// derives year and month from the purchase timestamp. An empty status keeps every order.
func BuildSales(raw Raw, status string) (models.Table[models.Sale], models.JoinStats, error) {
	if err := requireColumns(raw.Items, models.ColOrderID, models.ColProductID, models.ColPrice); err != nil {
		return models.Table[models.Sale]{}, models.JoinStats{}, err
	}
	if err := requireColumns(raw.Orders, models.ColOrderID, models.ColOrderPurchaseTimestamp); err != nil {
		return models.Table[models.Sale]{}, models.JoinStats{}, err
	}

	orders := raw.Orders.Rows
	if status != "" {
		if err := requireColumns(raw.Orders, models.ColOrderStatus); err != nil {
			return models.Table[models.Sale]{}, models.JoinStats{}, err
		}
		orders = make([]models.Order, 0, len(raw.Orders.Rows))
		for _, o := range raw.Orders.Rows {
			if o.OrderStatus == status {
				orders = append(orders, o)
			}
		}
	}

	sales, stats := metrics.Join("items_orders", raw.Items.Rows, orders,
		func(i models.OrderItem) string { return i.OrderID },
		func(o models.Order) string { return o.OrderID },
		func(i models.OrderItem, o models.Order) models.Sale {
			return models.NewSale(i.OrderID, i.ProductID, i.Price, o.OrderPurchaseTimestamp, o.OrderDeliveredCustomerDate)
		})

	columns := []string{
		models.ColOrderID, models.ColProductID, models.ColYear, models.ColMonth,
		models.ColPrice, models.ColOrderPurchaseTimestamp,
	}
	if raw.Orders.HasColumn(models.ColOrderDeliveredCustomerDate) {
		columns = append(columns, models.ColOrderDeliveredCustomerDate)
	}
	return models.NewTable(models.TableSales, columns, sales), stats, nil
}

// Assemble builds the snapshot a source hands to the pipeline.
func Assemble(raw Raw, status, source string, loadedAt time.Time) (*models.Snapshot, models.JoinStats, error) {
	sales, stats, err := BuildSales(raw, status)
	if err != nil {
		return nil, stats, err
	}
	return &models.Snapshot{
		Source:    source,
		LoadedAt:  loadedAt,
		Sales:     sales,
		Orders:    raw.Orders,
		Products:  raw.Products,
		Customers: raw.Customers,
		Reviews:   raw.Reviews,
	}, stats, nil
}

func requireColumns[T any](table models.Table[T], columns ...string) error {
	if column, missing := table.Missing(columns...); missing {
		return appErrors.NewSchemaError(table.Name, column)
	}
	return nil
}
