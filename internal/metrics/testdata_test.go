package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

func sale(orderID, productID string, price int64, purchased time.Time, delivered *time.Time) models.Sale {
	return models.NewSale(orderID, productID, decimal.NewFromInt(price), purchased, delivered)
}

// fixtureSnapshot covers two years of sales with one unmatched product and one unmatched customer.
func fixtureSnapshot() *models.Snapshot {
	sales := []models.Sale{
		sale("o1", "p1", 100, at(2023, time.January, 2), ptrTime(at(2023, time.January, 4))),
		sale("o1", "p2", 40, at(2023, time.January, 2), ptrTime(at(2023, time.January, 4))),
		sale("o2", "p2", 60, at(2023, time.February, 10), ptrTime(at(2023, time.February, 16))),
		sale("o3", "p3", 200, at(2023, time.February, 20), ptrTime(at(2023, time.March, 5))),
		sale("o4", "p-missing", 50, at(2023, time.March, 1), nil),
		sale("o5", "p1", 100, at(2022, time.January, 5), ptrTime(at(2022, time.January, 7))),
		sale("o6", "p2", 100, at(2022, time.March, 5), ptrTime(at(2022, time.March, 9))),
	}
	orders := []models.Order{
		{OrderID: "o1", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: at(2023, time.January, 2)},
		{OrderID: "o2", CustomerID: "c2", OrderStatus: "delivered", OrderPurchaseTimestamp: at(2023, time.February, 10)},
		{OrderID: "o3", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: at(2023, time.February, 20)},
		{OrderID: "o4", CustomerID: "c-missing", OrderStatus: "shipped", OrderPurchaseTimestamp: at(2023, time.March, 1)},
		{OrderID: "o5", CustomerID: "c2", OrderStatus: "delivered", OrderPurchaseTimestamp: at(2022, time.January, 5)},
		{OrderID: "o6", CustomerID: "c1", OrderStatus: "canceled", OrderPurchaseTimestamp: at(2022, time.March, 5)},
	}
	products := []models.Product{
		{ProductID: "p1", ProductCategoryName: "toys"},
		{ProductID: "p2", ProductCategoryName: "books"},
		{ProductID: "p3", ProductCategoryName: "garden"},
	}
	customers := []models.Customer{
		{CustomerID: "c1", CustomerState: "SP"},
		{CustomerID: "c2", CustomerState: "RJ"},
	}
	reviews := []models.Review{
		{OrderID: "o1", ReviewScore: 5},
		{OrderID: "o2", ReviewScore: 4},
		{OrderID: "o3", ReviewScore: 2},
		{OrderID: "o3", ReviewScore: 2},
		{OrderID: "o5", ReviewScore: 3},
	}
	snap := models.NewSnapshot(sales, orders, products, customers, reviews)
	snap.Version = "fixture"
	return snap
}
