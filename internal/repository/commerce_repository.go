package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

const (
	selectOrders = `SELECT order_id, customer_id, order_status, order_purchase_timestamp, order_delivered_customer_date
        FROM orders ORDER BY order_purchase_timestamp, order_id`
	selectOrderItems = `SELECT order_id, product_id, price FROM order_items ORDER BY order_id, order_item_id`
	selectProducts   = `SELECT product_id, COALESCE(product_category_name, '') AS product_category_name FROM products`
	selectCustomers  = `SELECT customer_id, customer_state FROM customers`
	selectReviews    = `SELECT order_id, review_score FROM order_reviews WHERE review_score IS NOT NULL`
)

// CommerceRepository reads the raw commerce tables from PostgreSQL or SQLite.
type CommerceRepository struct {
	db *sqlx.DB
}

// NewCommerceRepository instantiates the repository.
func NewCommerceRepository(db *sqlx.DB) *CommerceRepository {
	return &CommerceRepository{db: db}
}

// Orders returns every order header.
func (r *CommerceRepository) Orders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, selectOrders); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return orders, nil
}

// OrderItems returns every order line item.
func (r *CommerceRepository) OrderItems(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.SelectContext(ctx, &items, selectOrderItems); err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	return items, nil
}

// Products returns the product catalogue. Uncategorised products carry an empty category.
func (r *CommerceRepository) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, selectProducts); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return products, nil
}

// Customers returns every customer.
func (r *CommerceRepository) Customers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	if err := r.db.SelectContext(ctx, &customers, selectCustomers); err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return customers, nil
}

// Reviews returns the scored reviews.
func (r *CommerceRepository) Reviews(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, selectReviews); err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return reviews, nil
}

// Ping checks the connection.
func (r *CommerceRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
