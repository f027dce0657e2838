package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column names shared by loaders, the metrics pipeline and exports.
const (
	ColOrderID                    = "order_id"
	ColProductID                  = "product_id"
	ColCustomerID                 = "customer_id"
	ColYear                       = "year"
	ColMonth                      = "month"
	ColPrice                      = "price"
	ColOrderStatus                = "order_status"
	ColOrderPurchaseTimestamp     = "order_purchase_timestamp"
	ColOrderDeliveredCustomerDate = "order_delivered_customer_date"
	ColProductCategoryName        = "product_category_name"
	ColCustomerState              = "customer_state"
	ColReviewScore                = "review_score"
)

// Table names used in diagnostics and error messages.
const (
	TableSales     = "sales"
	TableOrders    = "orders"
	TableProducts  = "products"
	TableCustomers = "customers"
	TableReviews   = "reviews"
	TableItems     = "order_items"
)

// OrderStatusDelivered is the status the sales dataset is restricted to by default.
const OrderStatusDelivered = "delivered"

var (
	SaleColumns = []string{
		ColOrderID, ColProductID, ColYear, ColMonth, ColPrice,
		ColOrderPurchaseTimestamp, ColOrderDeliveredCustomerDate,
	}
	OrderColumns    = []string{ColOrderID, ColCustomerID, ColOrderStatus, ColOrderPurchaseTimestamp}
	ProductColumns  = []string{ColProductID, ColProductCategoryName}
	CustomerColumns = []string{ColCustomerID, ColCustomerState}
	ReviewColumns   = []string{ColOrderID, ColReviewScore}
	ItemColumns     = []string{ColOrderID, ColProductID, ColPrice}
)

// TimeRecord exposes timestamp columns by name. ok is false when the row has no value for column.
type TimeRecord interface {
	Time(column string) (time.Time, bool)
}

// Table is an immutable row collection together with the columns its source provided.
type Table[T any] struct {
	Name    string
	Columns []string
	Rows    []T
}

// NewTable builds a table over rows with the given schema.
func NewTable[T any](name string, columns []string, rows []T) Table[T] {
	return Table[T]{Name: name, Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t Table[T]) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the schema declares column.
func (t Table[T]) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Missing returns the first of columns absent from the schema.
func (t Table[T]) Missing(columns ...string) (string, bool) {
	for _, column := range columns {
		if !t.HasColumn(column) {
			return column, true
		}
	}
	return "", false
}

// WithRows returns a table with the same name and schema over a different row slice.
func (t Table[T]) WithRows(rows []T) Table[T] {
	return Table[T]{Name: t.Name, Columns: t.Columns, Rows: rows}
}

// Sale is one order line item. Year and Month always mirror OrderPurchaseTimestamp.
type Sale struct {
	OrderID                    string          `db:"order_id" json:"order_id"`
	ProductID                  string          `db:"product_id" json:"product_id"`
	Year                       int             `db:"year" json:"year"`
	Month                      int             `db:"month" json:"month"`
	Price                      decimal.Decimal `db:"price" json:"price"`
	OrderPurchaseTimestamp     time.Time       `db:"order_purchase_timestamp" json:"order_purchase_timestamp"`
	OrderDeliveredCustomerDate *time.Time      `db:"order_delivered_customer_date" json:"order_delivered_customer_date,omitempty"`
}

// NewSale builds a sale deriving Year and Month from the purchase timestamp.
func NewSale(orderID, productID string, price decimal.Decimal, purchasedAt time.Time, deliveredAt *time.Time) Sale {
	return Sale{
		OrderID:                    orderID,
		ProductID:                  productID,
		Year:                       purchasedAt.Year(),
		Month:                      int(purchasedAt.Month()),
		Price:                      price,
		OrderPurchaseTimestamp:     purchasedAt,
		OrderDeliveredCustomerDate: deliveredAt,
	}
}

// Time implements TimeRecord.
func (s Sale) Time(column string) (time.Time, bool) {
	switch column {
	case ColOrderPurchaseTimestamp:
		return s.OrderPurchaseTimestamp, !s.OrderPurchaseTimestamp.IsZero()
	case ColOrderDeliveredCustomerDate:
		if s.OrderDeliveredCustomerDate == nil {
			return time.Time{}, false
		}
		return *s.OrderDeliveredCustomerDate, true
	}
	return time.Time{}, false
}

// Order is the order header. The delivery date is carried only to build the sales table.
type Order struct {
	OrderID                    string     `db:"order_id" json:"order_id"`
	CustomerID                 string     `db:"customer_id" json:"customer_id"`
	OrderStatus                string     `db:"order_status" json:"order_status"`
	OrderPurchaseTimestamp     time.Time  `db:"order_purchase_timestamp" json:"order_purchase_timestamp"`
	OrderDeliveredCustomerDate *time.Time `db:"order_delivered_customer_date" json:"order_delivered_customer_date,omitempty"`
}

// OrderItem is one raw line item before it is joined with its order.
type OrderItem struct {
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// Time implements TimeRecord.
func (o Order) Time(column string) (time.Time, bool) {
	if column == ColOrderPurchaseTimestamp {
		return o.OrderPurchaseTimestamp, !o.OrderPurchaseTimestamp.IsZero()
	}
	return time.Time{}, false
}

// Product carries the category used for category performance.
type Product struct {
	ProductID           string `db:"product_id" json:"product_id"`
	ProductCategoryName string `db:"product_category_name" json:"product_category_name"`
}

// Customer carries the state used for geographic performance.
type Customer struct {
	CustomerID    string `db:"customer_id" json:"customer_id"`
	CustomerState string `db:"customer_state" json:"customer_state"`
}

// Review is a customer review score for an order.
type Review struct {
	OrderID     string `db:"order_id" json:"order_id"`
	ReviewScore int    `db:"review_score" json:"review_score"`
}

// Snapshot is the immutable set of tables one analysis session reads from.
type Snapshot struct {
	Version   string
	Source    string
	LoadedAt  time.Time
	Sales     Table[Sale]
	Orders    Table[Order]
	Products  Table[Product]
	Customers Table[Customer]
	Reviews   Table[Review]
}

// NewSnapshot assembles a snapshot from complete-schema row slices.
func NewSnapshot(sales []Sale, orders []Order, products []Product, customers []Customer, reviews []Review) *Snapshot {
	return &Snapshot{
		Sales:     NewTable(TableSales, SaleColumns, sales),
		Orders:    NewTable(TableOrders, OrderColumns, orders),
		Products:  NewTable(TableProducts, ProductColumns, products),
		Customers: NewTable(TableCustomers, CustomerColumns, customers),
		Reviews:   NewTable(TableReviews, ReviewColumns, reviews),
	}
}
