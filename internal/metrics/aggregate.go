package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// Op names a reduction.
type Op string

const (
	OpSum     Op = "sum"
	OpMean    Op = "mean"
	OpCount   Op = "count"
	OpNUnique Op = "nunique"
)

// Measure describes the column an aggregation reads. Value feeds sum and mean, Key feeds nunique.
type Measure[T any] struct {
	Column string
	Value  func(T) decimal.Decimal
	Key    func(T) string
}

// Scalar is a reduced value. Empty is set for the mean of no rows.
type Scalar struct {
	Value decimal.Decimal
	Empty bool
}

// Decimal returns the value, reading an empty mean as zero.
func (s Scalar) Decimal() decimal.Decimal {
	if s.Empty {
		return decimal.Zero
	}
	return s.Value
}

// Float returns the value as float64, reading an empty mean as zero.
func (s Scalar) Float() float64 {
	return s.Decimal().InexactFloat64()
}

// Int returns the value truncated to an int, reading an empty mean as zero.
func (s Scalar) Int() int {
	return int(s.Decimal().IntPart())
}

type accumulator struct {
	sum   decimal.Decimal
	count int
	seen  map[string]struct{}
}

func (a *accumulator) add(value decimal.Decimal, key string, op Op) {
	a.count++
	switch op {
	case OpSum, OpMean:
		a.sum = a.sum.Add(value)
	case OpNUnique:
		if a.seen == nil {
			a.seen = make(map[string]struct{})
		}
		a.seen[key] = struct{}{}
	}
}

func (a *accumulator) result(op Op) Scalar {
	switch op {
	case OpSum:
		return Scalar{Value: a.sum}
	case OpMean:
		if a.count == 0 {
			return Scalar{Empty: true}
		}
		return Scalar{Value: a.sum.Div(decimal.NewFromInt(int64(a.count)))}
	case OpCount:
		return Scalar{Value: decimal.NewFromInt(int64(a.count))}
	default:
		return Scalar{Value: decimal.NewFromInt(int64(len(a.seen)))}
	}
}

func validate[T any](m Measure[T], op Op) error {
	switch op {
	case OpSum, OpMean:
		if m.Value == nil {
			return fmt.Errorf("aggregate %s over %q: measure has no value accessor", op, m.Column)
		}
	case OpNUnique:
		if m.Key == nil {
			return fmt.Errorf("aggregate %s over %q: measure has no key accessor", op, m.Column)
		}
	case OpCount:
	default:
		return fmt.Errorf("unknown aggregation %q", op)
	}
	return nil
}

func feed[T any](acc *accumulator, row T, m Measure[T], op Op) {
	var value decimal.Decimal
	var key string
	if m.Value != nil && (op == OpSum || op == OpMean) {
		value = m.Value(row)
	}
	if m.Key != nil && op == OpNUnique {
		key = m.Key(row)
	}
	acc.add(value, key, op)
}

// Aggregate reduces all rows to a single scalar.
func Aggregate[T any](rows []T, m Measure[T], op Op) (Scalar, error) {
	if err := validate(m, op); err != nil {
		return Scalar{}, err
	}
	acc := &accumulator{}
	for _, row := range rows {
		feed(acc, row, m, op)
	}
	return acc.result(op), nil
}

// Grouped holds per-group results in first-appearance order.
type Grouped struct {
	keys   []string
	values map[string]Scalar
}

// Keys returns the group keys in the order they first appeared.
func (g *Grouped) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Len returns the number of groups.
func (g *Grouped) Len() int {
	return len(g.keys)
}

// Get returns the result for key.
func (g *Grouped) Get(key string) (Scalar, bool) {
	v, ok := g.values[key]
	return v, ok
}

// Ranked returns the groups sorted descending by value. Ties keep first-appearance order.
func (g *Grouped) Ranked() []models.RankedValue {
	out := make([]models.RankedValue, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, models.RankedValue{Key: k, Value: g.values[k].Decimal()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}

// Reduce aggregates the group results themselves, e.g. the mean of per-order sums.
func (g *Grouped) Reduce(op Op) (Scalar, error) {
	values := make([]decimal.Decimal, 0, len(g.keys))
	for _, k := range g.keys {
		values = append(values, g.values[k].Decimal())
	}
	return Aggregate(values, Measure[decimal.Decimal]{
		Column: "group_value",
		Value:  func(d decimal.Decimal) decimal.Decimal { return d },
		Key:    func(d decimal.Decimal) string { return d.String() },
	}, op)
}

// GroupAggregate reduces rows per group key.
func GroupAggregate[T any](rows []T, groupBy func(T) string, m Measure[T], op Op) (*Grouped, error) {
	if err := validate(m, op); err != nil {
		return nil, err
	}
	var keys []string
	accs := make(map[string]*accumulator)
	for _, row := range rows {
		k := groupBy(row)
		acc, ok := accs[k]
		if !ok {
			acc = &accumulator{}
			accs[k] = acc
			keys = append(keys, k)
		}
		feed(acc, row, m, op)
	}
	values := make(map[string]Scalar, len(accs))
	for k, acc := range accs {
		values[k] = acc.result(op)
	}
	return &Grouped{keys: keys, values: values}, nil
}

// CompositeKey joins several group columns into one key.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, "|")
}
