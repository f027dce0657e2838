package metrics

import (
	"errors"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

var errMissingTimestamp = errors.New("timestamp is absent or unreadable")

// FilterByPeriod keeps the rows whose dateColumn falls in year and month. Either bound may be nil;
// when both are set a row must match both. The input table is left untouched.
func FilterByPeriod[T models.TimeRecord](table models.Table[T], year, month *int, dateColumn string) (models.Table[T], error) {
	if !table.HasColumn(dateColumn) {
		return models.Table[T]{}, appErrors.NewSchemaError(table.Name, dateColumn)
	}
	rows := make([]T, 0, len(table.Rows))
	for i, row := range table.Rows {
		ts, ok := row.Time(dateColumn)
		if !ok {
			return models.Table[T]{}, appErrors.NewDataError(table.Name, dateColumn, i, errMissingTimestamp)
		}
		if year != nil && ts.Year() != *year {
			continue
		}
		if month != nil && int(ts.Month()) != *month {
			continue
		}
		rows = append(rows, row)
	}
	return table.WithRows(rows), nil
}

func requireColumns[T any](table models.Table[T], columns ...string) error {
	if column, missing := table.Missing(columns...); missing {
		return appErrors.NewSchemaError(table.Name, column)
	}
	return nil
}
