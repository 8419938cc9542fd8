package journal

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"trading-journal/internal/models"
)

// Any disables a type or position constraint. The empty string does too.
const Any = "any"

// Filter selects the trades shown in the history view.
type Filter struct {
	Search   string `json:"search" form:"search"`
	Type     string `json:"type" form:"type"`
	Position string `json:"position" form:"position"`
}

// ApplyFilter keeps the trades matching every criterion, preserving their order.
func ApplyFilter(trades []models.Trade, f Filter) []models.Trade {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if search != "" {
			text := strings.ToLower(t.Pair + " " + t.Observations)
			if !strings.Contains(text, search) {
				continue
			}
		}
		if !matches(f.Type, string(t.Type)) || !matches(f.Position, string(t.Position)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matches(criterion, value string) bool {
	return criterion == "" || criterion == Any || criterion == value
}

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sortable trade fields, named after their columns.
const (
	FieldTradeDate    = "trade_date"
	FieldPair         = "pair"
	FieldPosition     = "position"
	FieldValueTrade   = "value_trade"
	FieldType         = "type"
	FieldPercent      = "percent"
	FieldResult       = "result"
	FieldNewValue     = "new_value"
	FieldObservations = "observations"
)

type comparator func(a, b models.Trade) int

func byString(get func(models.Trade) string) comparator {
	return func(a, b models.Trade) int {
		return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
	}
}

func byNumber(get func(models.Trade) float64) comparator {
	return func(a, b models.Trade) int {
		return cmp.Compare(get(a), get(b))
	}
}

// byDate compares calendar dates. Unparseable dates sort first.
func byDate(a, b models.Trade) int {
	da, errA := a.Date()
	db, errB := b.Date()
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return da.Compare(db)
}

var comparators = map[string]comparator{
	FieldTradeDate:    byDate,
	FieldPair:         byString(func(t models.Trade) string { return t.Pair }),
	FieldPosition:     byString(func(t models.Trade) string { return string(t.Position) }),
	FieldType:         byString(func(t models.Trade) string { return string(t.Type) }),
	FieldObservations: byString(func(t models.Trade) string { return t.Observations }),
	FieldValueTrade:   byNumber(func(t models.Trade) float64 { return t.ValueTrade }),
	FieldPercent:      byNumber(func(t models.Trade) float64 { return t.Percent }),
	FieldResult:       byNumber(func(t models.Trade) float64 { return t.Result }),
	FieldNewValue:     byNumber(func(t models.Trade) float64 { return t.NewValue }),
}

// SortKey is the field and direction of the history view.
type SortKey struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

func DefaultSortKey() SortKey {
	return SortKey{Field: FieldTradeDate, Order: Desc}
}

// Select returns the key after the user picks field: the same field flips
// the order, a different field starts descending.
func (k SortKey) Select(field string) SortKey {
	if k.Field == field {
		if k.Order == Asc {
			return SortKey{Field: field, Order: Desc}
		}
		return SortKey{Field: field, Order: Asc}
	}
	return SortKey{Field: field, Order: Desc}
}

// ValidSortField reports whether trades can be sorted by field.
func ValidSortField(field string) bool {
	_, ok := comparators[field]
	return ok
}

// ApplySort returns a stably sorted copy of trades.
func ApplySort(trades []models.Trade, key SortKey) ([]models.Trade, error) {
	compare, ok := comparators[key.Field]
	if !ok {
		return nil, fmt.Errorf("unknown sort field %q", key.Field)
	}
	if key.Order != Asc && key.Order != Desc {
		return nil, fmt.Errorf("unknown sort order %q", key.Order)
	}

	out := slices.Clone(trades)
	slices.SortStableFunc(out, func(a, b models.Trade) int {
		c := compare(a, b)
		if key.Order == Desc {
			return -c
		}
		return c
	})
	return out, nil
}
