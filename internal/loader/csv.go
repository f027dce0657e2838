package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

// File names of the public Olist e-commerce export.
const (
	OrdersFile    = "orders_dataset.csv"
	ItemsFile     = "order_items_dataset.csv"
	ProductsFile  = "products_dataset.csv"
	CustomersFile = "customers_dataset.csv"
	ReviewsFile   = "order_reviews_dataset.csv"
)

// CSVSource loads a snapshot from a directory of CSV exports.
type CSVSource struct {
	dir    string
	status string
	logger *zap.Logger
	now    func() time.Time
}

// NewCSVSource reads from dir. status restricts the sales table to orders with that status.
func NewCSVSource(dir, status string, logger *zap.Logger) *CSVSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{dir: dir, status: status, logger: logger, now: time.Now}
}

// Name identifies the source in logs and snapshot metadata.
func (s *CSVSource) Name() string {
	return "csv:" + s.dir
}

// Load reads every file. Orders and order items are mandatory; the other files are skipped with a
// warning when absent and then surface as tables without columns.
func (s *CSVSource) Load(ctx context.Context) (*models.Snapshot, error) {
	var raw Raw
	var err error

	if raw.Orders, err = readTable(ctx, s, OrdersFile, models.TableOrders, true, parseOrder); err != nil {
		return nil, err
	}
	if raw.Items, err = readTable(ctx, s, ItemsFile, models.TableItems, true, parseItem); err != nil {
		return nil, err
	}
	if raw.Products, err = readTable(ctx, s, ProductsFile, models.TableProducts, false, parseProduct); err != nil {
		return nil, err
	}
	if raw.Customers, err = readTable(ctx, s, CustomersFile, models.TableCustomers, false, parseCustomer); err != nil {
		return nil, err
	}
	if raw.Reviews, err = readTable(ctx, s, ReviewsFile, models.TableReviews, false, parseReview); err != nil {
		return nil, err
	}

	snapshot, stats, err := Assemble(raw, s.status, s.Name(), s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("csv snapshot loaded",
		zap.String("dir", s.dir),
		zap.Int("orders", raw.Orders.Len()),
		zap.Int("order_items", raw.Items.Len()),
		zap.Int("sales", snapshot.Sales.Len()),
		zap.Int("items_without_order", stats.DroppedLeft),
	)
	return snapshot, nil
}

// row gives typed access to one CSV record by header name.
type row struct {
	table  string
	index  map[string]int
	record []string
	line   int
}

func (r row) has(column string) bool {
	_, ok := r.index[column]
	return ok
}

func (r row) str(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r row) timestamp(column string) (time.Time, error) {
	if !r.has(column) {
		return time.Time{}, nil
	}
	ts, err := ParseTimestamp(r.str(column))
	if err != nil {
		return time.Time{}, appErrors.NewDataError(r.table, column, r.line, err)
	}
	return ts, nil
}

func (r row) optionalTimestamp(column string) (*time.Time, error) {
	if r.str(column) == "" {
		return nil, nil
	}
	ts, err := ParseTimestamp(r.str(column))
	if err != nil {
		return nil, appErrors.NewDataError(r.table, column, r.line, err)
	}
	return &ts, nil
}

func (r row) dec(column string) (decimal.Decimal, error) {
	if !r.has(column) {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(r.str(column))
	if err != nil {
		return decimal.Zero, appErrors.NewDataError(r.table, column, r.line, err)
	}
	return d, nil
}

func (r row) integer(column string) (int, error) {
	if !r.has(column) {
		return 0, nil
	}
	v, err := strconv.Atoi(r.str(column))
	if err != nil {
		return 0, appErrors.NewDataError(r.table, column, r.line, err)
	}
	return v, nil
}

func parseOrder(r row) (models.Order, error) {
	purchased, err := r.timestamp(models.ColOrderPurchaseTimestamp)
	if err != nil {
		return models.Order{}, err
	}
	delivered, err := r.optionalTimestamp(models.ColOrderDeliveredCustomerDate)
	if err != nil {
		return models.Order{}, err
	}
	return models.Order{
		OrderID:                    r.str(models.ColOrderID),
		CustomerID:                 r.str(models.ColCustomerID),
		OrderStatus:                r.str(models.ColOrderStatus),
		OrderPurchaseTimestamp:     purchased,
		OrderDeliveredCustomerDate: delivered,
	}, nil
}

func parseItem(r row) (models.OrderItem, error) {
	price, err := r.dec(models.ColPrice)
	if err != nil {
		return models.OrderItem{}, err
	}
	return models.OrderItem{
		OrderID:   r.str(models.ColOrderID),
		ProductID: r.str(models.ColProductID),
		Price:     price,
	}, nil
}

func parseProduct(r row) (models.Product, error) {
	return models.Product{
		ProductID:           r.str(models.ColProductID),
		ProductCategoryName: r.str(models.ColProductCategoryName),
	}, nil
}

func parseCustomer(r row) (models.Customer, error) {
	return models.Customer{
		CustomerID:    r.str(models.ColCustomerID),
		CustomerState: r.str(models.ColCustomerState),
	}, nil
}

func parseReview(r row) (models.Review, error) {
	score, err := r.integer(models.ColReviewScore)
	if err != nil {
		return models.Review{}, err
	}
	return models.Review{OrderID: r.str(models.ColOrderID), ReviewScore: score}, nil
}

func readTable[T any](ctx context.Context, s *CSVSource, file, name string, mandatory bool, parse func(row) (T, error)) (models.Table[T], error) {
	path := filepath.Join(s.dir, file)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mandatory {
			s.logger.Warn("optional dataset missing, skipping", zap.String("file", path))
			return models.NewTable[T](name, nil, nil), nil
		}
		return models.Table[T]{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true
	headers, err := reader.Read()
	if err != nil {
		return models.Table[T]{}, fmt.Errorf("read %s header: %w", path, err)
	}
	columns := make([]string, 0, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
		columns = append(columns, h)
	}

	var rows []T
	for line := 0; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return models.Table[T]{}, err
			}
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Table[T]{}, fmt.Errorf("read %s: %w", path, err)
		}
		item, err := parse(row{table: name, index: index, record: record, line: line})
		if err != nil {
			return models.Table[T]{}, err
		}
		rows = append(rows, item)
	}
	s.logger.Debug("dataset loaded", zap.String("file", path), zap.Int("rows", len(rows)))
	return models.NewTable(name, columns, rows), nil
}
