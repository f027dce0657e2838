package metrics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// SummaryParams selects the periods a business summary compares.
type SummaryParams struct {
	CurrentYear    int
	ComparisonYear int
	// FilterMonth narrows every bundle to one calendar month. The monthly trend is skipped when set.
	FilterMonth *int
}

// BusinessSummary computes every bundle concurrently and returns them as one record. The first
// failing bundle cancels the rest and its error is returned.
func (p *Pipeline) BusinessSummary(ctx context.Context, params SummaryParams) (*models.BusinessSummary, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	run, err := p.forPeriod(params.FilterMonth)
	if err != nil {
		return nil, err
	}

	summary := &models.BusinessSummary{
		SnapshotVersion: p.snapshot.Version,
		CurrentYear:     params.CurrentYear,
		ComparisonYear:  params.ComparisonYear,
		FilterMonth:     params.FilterMonth,
	}

	g, gctx := errgroup.WithContext(ctx)
	bundle := func(name string, fn func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			err := fn()
			if p.onBundle != nil {
				p.onBundle(name, time.Since(start), err)
			}
			return err
		})
	}

	bundle("revenue", func() (err error) {
		summary.Revenue, err = run.RevenueMetrics(params.CurrentYear, params.ComparisonYear)
		return err
	})
	bundle("aov", func() (err error) {
		summary.AOV, err = run.AverageOrderValue(params.CurrentYear, params.ComparisonYear)
		return err
	})
	bundle("orders", func() (err error) {
		summary.Orders, err = run.OrderCountMetrics(params.CurrentYear, params.ComparisonYear)
		return err
	})
	if params.FilterMonth == nil {
		bundle("monthly_growth", func() error {
			trend, err := run.MonthlyGrowthTrend(params.CurrentYear)
			if err != nil {
				return err
			}
			summary.MonthlyGrowth = &trend
			return nil
		})
	}
	bundle("categories", func() (err error) {
		summary.CategoryPerformance, err = run.CategoryPerformance(params.CurrentYear)
		return err
	})
	bundle("states", func() (err error) {
		summary.GeographicPerformance, err = run.GeographicPerformance(params.CurrentYear)
		return err
	})
	bundle("delivery", func() (err error) {
		summary.DeliveryPerformance, err = run.DeliveryPerformanceMetrics(params.CurrentYear)
		return err
	})
	bundle("order_status", func() (err error) {
		summary.OrderStatusDistribution, err = run.OrderStatusDistribution(params.CurrentYear)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary.Diagnostics = run.Diagnostics()
	summary.GeneratedAt = time.Now().UTC()
	return summary, nil
}

// forPeriod returns a pipeline with fresh diagnostics over the sales and orders purchased in month.
// A nil month keeps the snapshot tables as they are.
func (p *Pipeline) forPeriod(month *int) (*Pipeline, error) {
	if month == nil {
		return p.withSnapshot(p.snapshot), nil
	}
	sales, err := FilterByPeriod(p.snapshot.Sales, nil, month, p.dateColumn)
	if err != nil {
		return nil, err
	}
	orders, err := FilterByPeriod(p.snapshot.Orders, nil, month, models.ColOrderPurchaseTimestamp)
	if err != nil {
		return nil, err
	}
	narrowed := *p.snapshot
	narrowed.Sales = sales
	narrowed.Orders = orders
	return p.withSnapshot(&narrowed), nil
}
