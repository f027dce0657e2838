package loader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// TableReader reads the raw commerce tables from a database.
type TableReader interface {
	Orders(ctx context.Context) ([]models.Order, error)
	OrderItems(ctx context.Context) ([]models.OrderItem, error)
	Products(ctx context.Context) ([]models.Product, error)
	Customers(ctx context.Context) ([]models.Customer, error)
	Reviews(ctx context.Context) ([]models.Review, error)
}

// SQLSource loads a snapshot through a TableReader. Its tables always carry the full schema.
type SQLSource struct {
	reader TableReader
	name   string
	status string
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLSource wraps reader. name is reported as the snapshot source.
func NewSQLSource(reader TableReader, name, status string, logger *zap.Logger) *SQLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLSource{reader: reader, name: name, status: status, logger: logger, now: time.Now}
}

// Name identifies the source.
func (s *SQLSource) Name() string {
	return s.name
}

// Load reads the five tables and derives the sales table.
func (s *SQLSource) Load(ctx context.Context) (*models.Snapshot, error) {
	orders, err := s.reader.Orders(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.reader.OrderItems(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.reader.Products(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.reader.Customers(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reader.Reviews(ctx)
	if err != nil {
		return nil, err
	}

	orderColumns := append(append([]string(nil), models.OrderColumns...), models.ColOrderDeliveredCustomerDate)
	raw := Raw{
		Items:     models.NewTable(models.TableItems, models.ItemColumns, items),
		Orders:    models.NewTable(models.TableOrders, orderColumns, orders),
		Products:  models.NewTable(models.TableProducts, models.ProductColumns, products),
		Customers: models.NewTable(models.TableCustomers, models.CustomerColumns, customers),
		Reviews:   models.NewTable(models.TableReviews, models.ReviewColumns, reviews),
	}
	snapshot, stats, err := Assemble(raw, s.status, s.name, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("sql snapshot loaded",
		zap.String("source", s.name),
		zap.Int("orders", len(orders)),
		zap.Int("sales", snapshot.Sales.Len()),
		zap.Int("items_without_order", stats.DroppedLeft),
	)
	return snapshot, nil
}
