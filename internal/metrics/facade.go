package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

// Options tunes a Pipeline.
type Options struct {
	// DateColumn is the sales timestamp used for year and month windows.
	DateColumn string
	Logger     *zap.Logger
	// OnJoin receives the stats of every join the pipeline performs.
	OnJoin func(models.JoinStats)
	// OnBundle receives the duration and outcome of every bundle BusinessSummary runs.
	OnBundle func(bundle string, elapsed time.Duration, err error)
}

// Pipeline computes metric bundles over one immutable snapshot.
type Pipeline struct {
	snapshot   *models.Snapshot
	dateColumn string
	logger     *zap.Logger
	onJoin     func(models.JoinStats)
	onBundle   func(string, time.Duration, error)
	diag       *diagnostics
}

type diagnostics struct {
	mu    sync.Mutex
	stats []models.JoinStats
}

func (d *diagnostics) record(s models.JoinStats) {
	d.mu.Lock()
	d.stats = append(d.stats, s)
	d.mu.Unlock()
}

func (d *diagnostics) snapshot() []models.JoinStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.JoinStats(nil), d.stats...)
}

// NewPipeline builds a pipeline reading from snapshot.
func NewPipeline(snapshot *models.Snapshot, opts Options) *Pipeline {
	if opts.DateColumn == "" {
		opts.DateColumn = models.ColOrderPurchaseTimestamp
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		snapshot:   snapshot,
		dateColumn: opts.DateColumn,
		logger:     logger,
		onJoin:     opts.OnJoin,
		onBundle:   opts.OnBundle,
		diag:       &diagnostics{},
	}
}

// Diagnostics returns the join stats recorded so far.
func (p *Pipeline) Diagnostics() []models.JoinStats {
	return p.diag.snapshot()
}

func (p *Pipeline) withSnapshot(s *models.Snapshot) *Pipeline {
	clone := *p
	clone.snapshot = s
	clone.diag = &diagnostics{}
	return &clone
}

func (p *Pipeline) recordJoin(stats models.JoinStats) {
	p.diag.record(stats)
	if p.onJoin != nil {
		p.onJoin(stats)
	}
	fields := []zap.Field{
		zap.String("join", stats.Name),
		zap.Int("left_rows", stats.LeftRows),
		zap.Int("dropped_left", stats.DroppedLeft),
		zap.Int("output_rows", stats.OutputRows),
	}
	if stats.DroppedLeft > 0 {
		p.logger.Warn("inner join dropped unmatched rows", fields...)
		return
	}
	p.logger.Debug("inner join", fields...)
}

func (p *Pipeline) ready() error {
	if p == nil || p.snapshot == nil {
		return appErrors.ErrUnavailable
	}
	return nil
}

func (p *Pipeline) salesIn(year int, columns ...string) ([]models.Sale, error) {
	sales := p.snapshot.Sales
	if err := requireColumns(sales, columns...); err != nil {
		return nil, err
	}
	filtered, err := FilterByPeriod(sales, &year, nil, p.dateColumn)
	if err != nil {
		return nil, err
	}
	return filtered.Rows, nil
}

var (
	priceMeasure = Measure[models.Sale]{
		Column: models.ColPrice,
		Value:  func(s models.Sale) decimal.Decimal { return s.Price },
	}
	orderMeasure = Measure[models.Sale]{
		Column: models.ColOrderID,
		Key:    func(s models.Sale) string { return s.OrderID },
	}
)

func saleOrderID(s models.Sale) string { return s.OrderID }

// RevenueMetrics sums sale prices per year and compares them.
func (p *Pipeline) RevenueMetrics(currentYear, comparisonYear int) (models.RevenueMetrics, error) {
	if err := p.ready(); err != nil {
		return models.RevenueMetrics{}, err
	}
	revenue := func(year int) (decimal.Decimal, error) {
		rows, err := p.salesIn(year, p.dateColumn, models.ColPrice)
		if err != nil {
			return decimal.Zero, err
		}
		total, err := Aggregate(rows, priceMeasure, OpSum)
		if err != nil {
			return decimal.Zero, err
		}
		return total.Decimal(), nil
	}
	current, err := revenue(currentYear)
	if err != nil {
		return models.RevenueMetrics{}, err
	}
	previous, err := revenue(comparisonYear)
	if err != nil {
		return models.RevenueMetrics{}, err
	}
	return models.RevenueMetrics{
		CurrentRevenue:  current,
		PreviousRevenue: previous,
		RevenueGrowth:   Growth(current, previous),
	}, nil
}

// MonthlyGrowthTrend returns month-over-month revenue change for the months present in year.
// The first month has no growth value. A month following one with zero revenue reports 0 growth,
// the same as Growth does for a zero comparison value.
func (p *Pipeline) MonthlyGrowthTrend(year int) (models.MonthlyTrend, error) {
	if err := p.ready(); err != nil {
		return models.MonthlyTrend{}, err
	}
	rows, err := p.salesIn(year, p.dateColumn, models.ColMonth, models.ColPrice)
	if err != nil {
		return models.MonthlyTrend{}, err
	}
	byMonth, err := GroupAggregate(rows, func(s models.Sale) string { return strconv.Itoa(s.Month) }, priceMeasure, OpSum)
	if err != nil {
		return models.MonthlyTrend{}, err
	}

	months := make([]int, 0, byMonth.Len())
	for _, k := range byMonth.Keys() {
		m, err := strconv.Atoi(k)
		if err != nil {
			return models.MonthlyTrend{}, fmt.Errorf("monthly trend: bad month key %q: %w", k, err)
		}
		months = append(months, m)
	}
	sort.Ints(months)

	trend := models.MonthlyTrend{Year: year, Points: make([]models.MonthlyGrowthPoint, 0, len(months))}
	var prev *decimal.Decimal
	for _, m := range months {
		total, _ := byMonth.Get(strconv.Itoa(m))
		revenue := total.Decimal()
		point := models.MonthlyGrowthPoint{Month: m, Revenue: revenue}
		if prev != nil {
			g := Growth(revenue, *prev)
			point.Growth = &g
		}
		trend.Points = append(trend.Points, point)
		prev = &revenue
	}
	return trend, nil
}

// AverageOrderValue compares the mean per-order revenue between two years.
func (p *Pipeline) AverageOrderValue(currentYear, comparisonYear int) (models.AOVMetrics, error) {
	if err := p.ready(); err != nil {
		return models.AOVMetrics{}, err
	}
	aov := func(year int) (decimal.Decimal, error) {
		rows, err := p.salesIn(year, p.dateColumn, models.ColOrderID, models.ColPrice)
		if err != nil {
			return decimal.Zero, err
		}
		perOrder, err := GroupAggregate(rows, saleOrderID, priceMeasure, OpSum)
		if err != nil {
			return decimal.Zero, err
		}
		mean, err := perOrder.Reduce(OpMean)
		if err != nil {
			return decimal.Zero, err
		}
		return mean.Decimal(), nil
	}
	current, err := aov(currentYear)
	if err != nil {
		return models.AOVMetrics{}, err
	}
	previous, err := aov(comparisonYear)
	if err != nil {
		return models.AOVMetrics{}, err
	}
	return models.AOVMetrics{
		CurrentAOV:  current,
		PreviousAOV: previous,
		AOVGrowth:   Growth(current, previous),
	}, nil
}

// OrderCountMetrics compares distinct order counts between two years.
func (p *Pipeline) OrderCountMetrics(currentYear, comparisonYear int) (models.OrderCountMetrics, error) {
	if err := p.ready(); err != nil {
		return models.OrderCountMetrics{}, err
	}
	count := func(year int) (int, error) {
		rows, err := p.salesIn(year, p.dateColumn, models.ColOrderID)
		if err != nil {
			return 0, err
		}
		n, err := Aggregate(rows, orderMeasure, OpNUnique)
		if err != nil {
			return 0, err
		}
		return n.Int(), nil
	}
	current, err := count(currentYear)
	if err != nil {
		return models.OrderCountMetrics{}, err
	}
	previous, err := count(comparisonYear)
	if err != nil {
		return models.OrderCountMetrics{}, err
	}
	return models.OrderCountMetrics{
		CurrentOrders:  current,
		PreviousOrders: previous,
		OrderGrowth:    Growth(decimal.NewFromInt(int64(current)), decimal.NewFromInt(int64(previous))),
	}, nil
}

type categorySale struct {
	category string
	price    decimal.Decimal
}

// withGroupKey drops rows whose group key is empty.
func withGroupKey[T any](rows []T, key func(T) string) []T {
	out := rows[:0:0]
	for _, row := range rows {
		if key(row) != "" {
			out = append(out, row)
		}
	}
	return out
}

// CategoryPerformance ranks product categories by revenue in year. Products without a category
// are skipped.
func (p *Pipeline) CategoryPerformance(year int) ([]models.RankedValue, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	products := p.snapshot.Products
	if err := requireColumns(products, models.ColProductID, models.ColProductCategoryName); err != nil {
		return nil, err
	}
	rows, err := p.salesIn(year, p.dateColumn, models.ColProductID, models.ColPrice)
	if err != nil {
		return nil, err
	}
	joined, stats := Join("sales_products", rows, products.Rows,
		func(s models.Sale) string { return s.ProductID },
		func(pr models.Product) string { return pr.ProductID },
		func(s models.Sale, pr models.Product) categorySale {
			return categorySale{category: pr.ProductCategoryName, price: s.Price}
		})
	p.recordJoin(stats)

	joined = withGroupKey(joined, func(c categorySale) string { return c.category })
	grouped, err := GroupAggregate(joined, func(c categorySale) string { return c.category },
		Measure[categorySale]{Column: models.ColPrice, Value: func(c categorySale) decimal.Decimal { return c.price }}, OpSum)
	if err != nil {
		return nil, err
	}
	return grouped.Ranked(), nil
}

type saleCustomer struct {
	customerID string
	price      decimal.Decimal
}

type stateSale struct {
	state string
	price decimal.Decimal
}

// GeographicPerformance ranks customer states by revenue in year. Customers without a state are
// skipped.
func (p *Pipeline) GeographicPerformance(year int) ([]models.RankedValue, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	orders, customers := p.snapshot.Orders, p.snapshot.Customers
	if err := requireColumns(orders, models.ColOrderID, models.ColCustomerID); err != nil {
		return nil, err
	}
	if err := requireColumns(customers, models.ColCustomerID, models.ColCustomerState); err != nil {
		return nil, err
	}
	rows, err := p.salesIn(year, p.dateColumn, models.ColOrderID, models.ColPrice)
	if err != nil {
		return nil, err
	}

	withCustomer, stats := Join("sales_orders", rows, orders.Rows,
		saleOrderID,
		func(o models.Order) string { return o.OrderID },
		func(s models.Sale, o models.Order) saleCustomer {
			return saleCustomer{customerID: o.CustomerID, price: s.Price}
		})
	p.recordJoin(stats)

	withState, stats := Join("orders_customers", withCustomer, customers.Rows,
		func(sc saleCustomer) string { return sc.customerID },
		func(c models.Customer) string { return c.CustomerID },
		func(sc saleCustomer, c models.Customer) stateSale {
			return stateSale{state: c.CustomerState, price: sc.price}
		})
	p.recordJoin(stats)

	withState = withGroupKey(withState, func(s stateSale) string { return s.state })
	grouped, err := GroupAggregate(withState, func(s stateSale) string { return s.state },
		Measure[stateSale]{Column: models.ColPrice, Value: func(s stateSale) decimal.Decimal { return s.price }}, OpSum)
	if err != nil {
		return nil, err
	}
	return grouped.Ranked(), nil
}

type deliveredSale struct {
	orderID string
	days    int
}

type ratedDelivery struct {
	orderID string
	days    int
	score   int
	bucket  DeliveryBucket
}

var (
	daysMeasure = Measure[ratedDelivery]{
		Column: "delivery_days",
		Value:  func(r ratedDelivery) decimal.Decimal { return decimal.NewFromInt(int64(r.days)) },
	}
	scoreMeasure = Measure[ratedDelivery]{
		Column: models.ColReviewScore,
		Value:  func(r ratedDelivery) decimal.Decimal { return decimal.NewFromInt(int64(r.score)) },
	}
)

// DeliveryPerformanceMetrics reports mean delivery days, mean review score and the mean review
// score per delivery bucket. Sales without a delivery date are left out.
func (p *Pipeline) DeliveryPerformanceMetrics(year int) (models.DeliveryMetrics, error) {
	if err := p.ready(); err != nil {
		return models.DeliveryMetrics{}, err
	}
	reviews := p.snapshot.Reviews
	if err := requireColumns(reviews, models.ColOrderID, models.ColReviewScore); err != nil {
		return models.DeliveryMetrics{}, err
	}
	rows, err := p.salesIn(year, p.dateColumn, models.ColOrderID,
		models.ColOrderPurchaseTimestamp, models.ColOrderDeliveredCustomerDate)
	if err != nil {
		return models.DeliveryMetrics{}, err
	}

	delivered := make([]deliveredSale, 0, len(rows))
	for _, s := range rows {
		if s.OrderDeliveredCustomerDate == nil {
			continue
		}
		delivered = append(delivered, deliveredSale{
			orderID: s.OrderID,
			days:    DeliverySpeedDays(s.OrderPurchaseTimestamp, *s.OrderDeliveredCustomerDate),
		})
	}

	joined, stats := Join("sales_reviews", delivered, reviews.Rows,
		func(d deliveredSale) string { return d.orderID },
		func(r models.Review) string { return r.OrderID },
		func(d deliveredSale, r models.Review) ratedDelivery {
			return ratedDelivery{orderID: d.orderID, days: d.days, score: r.ReviewScore, bucket: BucketFor(d.days)}
		})
	p.recordJoin(stats)
	rated := DistinctBy(joined, func(r ratedDelivery) string {
		return CompositeKey(r.orderID, strconv.Itoa(r.days), strconv.Itoa(r.score))
	})

	avgDays, err := Aggregate(rated, daysMeasure, OpMean)
	if err != nil {
		return models.DeliveryMetrics{}, err
	}
	avgScore, err := Aggregate(rated, scoreMeasure, OpMean)
	if err != nil {
		return models.DeliveryMetrics{}, err
	}
	byBucket, err := GroupAggregate(rated, func(r ratedDelivery) string { return string(r.bucket) }, scoreMeasure, OpMean)
	if err != nil {
		return models.DeliveryMetrics{}, err
	}
	bucketScore := func(b DeliveryBucket) float64 {
		v, ok := byBucket.Get(string(b))
		if !ok {
			return 0
		}
		return v.Float()
	}

	return models.DeliveryMetrics{
		AvgDeliveryDays:       avgDays.Float(),
		AvgReviewScore:        avgScore.Float(),
		FastDeliveryScore:     bucketScore(BucketFast),
		StandardDeliveryScore: bucketScore(BucketStandard),
		SlowDeliveryScore:     bucketScore(BucketSlow),
		RatedDeliveries:       len(rated),
	}, nil
}

// OrderStatusDistribution returns each status' percentage share of the orders purchased in year.
func (p *Pipeline) OrderStatusDistribution(year int) ([]models.RankedValue, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	orders := p.snapshot.Orders
	if err := requireColumns(orders, models.ColOrderStatus, models.ColOrderPurchaseTimestamp); err != nil {
		return nil, err
	}
	filtered, err := FilterByPeriod(orders, &year, nil, models.ColOrderPurchaseTimestamp)
	if err != nil {
		return nil, err
	}
	counts, err := GroupAggregate(filtered.Rows, func(o models.Order) string { return o.OrderStatus },
		Measure[models.Order]{Column: models.ColOrderStatus}, OpCount)
	if err != nil {
		return nil, err
	}
	ranked := counts.Ranked()
	if len(ranked) == 0 {
		return ranked, nil
	}
	total := decimal.NewFromInt(int64(filtered.Len()))
	for i := range ranked {
		ranked[i].Value = ranked[i].Value.Div(total).Mul(hundred)
	}
	return ranked, nil
}

// DatasetSummaries describes every table of the snapshot.
func (p *Pipeline) DatasetSummaries() ([]models.DatasetSummary, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	s := p.snapshot
	orders := models.DatasetSummary{Name: s.Orders.Name, Rows: s.Orders.Len(), Columns: len(s.Orders.Columns)}
	if s.Orders.HasColumn(models.ColOrderPurchaseTimestamp) && s.Orders.Len() > 0 {
		var start, end time.Time
		for i, o := range s.Orders.Rows {
			ts := o.OrderPurchaseTimestamp
			if i == 0 || ts.Before(start) {
				start = ts
			}
			if i == 0 || ts.After(end) {
				end = ts
			}
		}
		orders.DateRange = &models.DateRange{Start: start, End: end}
	}
	return []models.DatasetSummary{
		{Name: s.Sales.Name, Rows: s.Sales.Len(), Columns: len(s.Sales.Columns)},
		orders,
		{Name: s.Products.Name, Rows: s.Products.Len(), Columns: len(s.Products.Columns)},
		{Name: s.Customers.Name, Rows: s.Customers.Len(), Columns: len(s.Customers.Columns)},
		{Name: s.Reviews.Name, Rows: s.Reviews.Len(), Columns: len(s.Reviews.Columns)},
	}, nil
}
