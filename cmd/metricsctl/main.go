// metricsctl computes commerce metrics from a CSV export without running the API.
//
// Usage:
//
//	metricsctl summary --dir ./ecommerce_data --year 2023 [--month 6] [--format table|json]
//	metricsctl datasets --dir ./ecommerce_data
//	metricsctl token --subject ops --role operator
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/loader"
	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "metricsctl",
		Usage:   "Compute commerce metrics from a CSV dataset",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log loader progress to stderr",
			},
		},
		Commands: []*cli.Command{
			summaryCommand(),
			datasetsCommand(),
			tokenCommand(),
		},
	}
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Value:   "./ecommerce_data",
			Usage:   "Directory holding the CSV export",
			EnvVars: []string{"DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "status",
			Value:   models.OrderStatusDelivered,
			Usage:   "Order status counted as a sale",
			EnvVars: []string{"METRICS_ORDER_STATUS"},
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print the business summary for a year",
		Flags: append(dataFlags(),
			&cli.IntFlag{
				Name:  "year",
				Value: 2023,
				Usage: "Current year",
			},
			&cli.IntFlag{
				Name:  "comparison-year",
				Usage: "Comparison year (defaults to year - 1)",
			},
			&cli.IntFlag{
				Name:  "month",
				Usage: "Restrict every metric to one calendar month (1-12)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "Upper bound for loading and computing",
			},
		),
		Action: runSummary,
	}
}

func datasetsCommand() *cli.Command {
	return &cli.Command{
		Name:   "datasets",
		Usage:  "Describe the loaded tables",
		Flags:  dataFlags(),
		Action: runDatasets,
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an API access token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true, Usage: "Token subject"},
			&cli.StringFlag{Name: "role", Value: string(models.RoleOperator), Usage: "Role (viewer, operator)"},
			&cli.StringFlag{Name: "secret", Required: true, Usage: "Signing secret", EnvVars: []string{"JWT_SECRET"}},
			&cli.StringFlag{Name: "issuer", Value: "commerce-metrics-api", Usage: "Token issuer", EnvVars: []string{"JWT_ISSUER"}},
			&cli.DurationFlag{Name: "expiry", Value: time.Hour, Usage: "Token lifetime"},
		},
		Action: runToken,
	}
}

func loggerFor(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	logr, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logr
}

func loadPipeline(ctx context.Context, c *cli.Context) (*metrics.Pipeline, error) {
	logr := loggerFor(c)
	snapshot, err := loader.NewCSVSource(c.String("dir"), c.String("status"), logr).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return metrics.NewPipeline(snapshot, metrics.Options{Logger: logr}), nil
}

func runSummary(c *cli.Context) error {
	format := c.String("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	month := c.Int("month")
	if month < 0 || month > 12 {
		return fmt.Errorf("month must be between 1 and 12")
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	pipeline, err := loadPipeline(ctx, c)
	if err != nil {
		return err
	}

	params := metrics.SummaryParams{CurrentYear: c.Int("year"), ComparisonYear: c.Int("comparison-year")}
	if params.ComparisonYear == 0 {
		params.ComparisonYear = params.CurrentYear - 1
	}
	if month != 0 {
		params.FilterMonth = &month
	}

	summary, err := pipeline.BusinessSummary(ctx, params)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(c.App.Writer, summary)
	}
	return writeSummaryTable(c.App.Writer, summary)
}

func runDatasets(c *cli.Context) error {
	pipeline, err := loadPipeline(c.Context, c)
	if err != nil {
		return err
	}
	datasets, err := pipeline.DatasetSummaries()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS\tFROM\tTO")
	for _, d := range datasets {
		from, to := "-", "-"
		if d.DateRange != nil {
			from = d.DateRange.Start.Format(time.DateOnly)
			to = d.DateRange.End.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", d.Name, d.Rows, d.Columns, from, to)
	}
	return tw.Flush()
}

func runToken(c *cli.Context) error {
	auth := service.NewAuthService(service.AuthConfig{
		Secret: c.String("secret"),
		Issuer: c.String("issuer"),
		Expiry: c.Duration("expiry"),
	}, nil)
	token, err := auth.IssueToken(c.String("subject"), models.Role(c.String("role")))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token.AccessToken)
	return nil
}

func writeJSON(w io.Writer, value interface{}) error {
	decimal.MarshalJSONWithoutQuotes = true
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeSummaryTable(w io.Writer, s *models.BusinessSummary) error {
	period := fmt.Sprintf("%d vs %d", s.CurrentYear, s.ComparisonYear)
	if s.FilterMonth != nil {
		period = fmt.Sprintf("%s (%s)", period, time.Month(*s.FilterMonth))
	}
	fmt.Fprintf(w, "Business summary %s\n\n", period)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCURRENT\tPREVIOUS\tTREND")
	fmt.Fprintf(tw, "Total revenue\t%s\t%s\t%s\n",
		metrics.FormatCurrency(s.Revenue.CurrentRevenue),
		metrics.FormatCurrency(s.Revenue.PreviousRevenue),
		metrics.FormatTrend(s.Revenue.CurrentRevenue, s.Revenue.PreviousRevenue))
	fmt.Fprintf(tw, "Average order value\t%s\t%s\t%s\n",
		metrics.FormatCurrency(s.AOV.CurrentAOV),
		metrics.FormatCurrency(s.AOV.PreviousAOV),
		metrics.FormatTrend(s.AOV.CurrentAOV, s.AOV.PreviousAOV))
	current := decimal.NewFromInt(int64(s.Orders.CurrentOrders))
	previous := decimal.NewFromInt(int64(s.Orders.PreviousOrders))
	fmt.Fprintf(tw, "Total orders\t%d\t%d\t%s\n", s.Orders.CurrentOrders, s.Orders.PreviousOrders, metrics.FormatTrend(current, previous))
	if err := tw.Flush(); err != nil {
		return err
	}

	writeRanked(w, "Top categories", s.CategoryPerformance, 5)
	writeRanked(w, "Top states", s.GeographicPerformance, 5)

	d := s.DeliveryPerformance
	fmt.Fprintf(w, "\nDelivery: %.1f days on average, review %.2f/5 over %d rated orders\n",
		d.AvgDeliveryDays, d.AvgReviewScore, d.RatedDeliveries)
	return nil
}

func writeRanked(w io.Writer, title string, ranked []models.RankedValue, limit int) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(ranked) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i, r := range ranked {
		fmt.Fprintf(w, "  %d. %-28s %s\n", i+1, r.Key, metrics.FormatCurrency(r.Value))
	}
}
