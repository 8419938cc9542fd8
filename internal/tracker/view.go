package tracker

import (
	"fmt"
	"slices"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"
	"trading-journal/internal/remote"
)

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	User              *remote.User    `json:"user"`
	Username          string          `json:"username"`
	Settings          models.Settings `json:"settings"`
	CurrentTradeValue float64         `json:"current_trade_value"`
	Filter            journal.Filter  `json:"filter"`
	Sort              journal.SortKey `json:"sort"`
	TradeCount        int             `json:"trade_count"`
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Username:          t.profile.UsernameOrEmpty(),
		Settings:          t.settings,
		CurrentTradeValue: t.currentTradeValue,
		Filter:            t.filter,
		Sort:              t.sortKey,
		TradeCount:        len(t.trades),
	}
	if t.user != nil {
		u := *t.user
		s.User = &u
	}
	return s
}

// SignedIn reports whether the session has a user.
func (t *Tracker) SignedIn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user != nil
}

func (t *Tracker) Settings() models.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// CurrentTradeValue is the suggested value of the next trade.
func (t *Tracker) CurrentTradeValue() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTradeValue
}

// Trades returns the history in chronological order.
func (t *Tracker) Trades() []models.Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.trades)
}

// ApplyFilter replaces the view's filter.
func (t *Tracker) ApplyFilter(f journal.Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = f
}

// Sort selects field for sorting: the same field flips the order, another
// field starts descending.
func (t *Tracker) Sort(field string) (journal.SortKey, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !journal.ValidSortField(field) {
		return t.sortKey, fmt.Errorf("unknown sort field %q", field)
	}
	t.sortKey = t.sortKey.Select(field)
	return t.sortKey, nil
}

// SetSort replaces the sort key.
func (t *Tracker) SetSort(key journal.SortKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := journal.ApplySort(nil, key); err != nil {
		return err
	}
	t.sortKey = key
	return nil
}

// View is the filtered, sorted history shown to the user.
func (t *Tracker) View() ([]models.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return journal.ApplySort(journal.ApplyFilter(t.trades, t.filter), t.sortKey)
}

// ViewQuery changes the view before it is built. An empty Sort keeps the
// current key; a Sort without Order toggles like a column header click.
type ViewQuery struct {
	Filter journal.Filter
	Sort   string
	Order  journal.SortOrder
}

// ListView is a built view together with the state it was built from.
type ListView struct {
	Trades            []models.Trade
	Total             int
	Sort              journal.SortKey
	CurrentTradeValue float64
}

// ViewWith applies q and builds the view in one step, so concurrent callers
// never see each other's filter or sort. On error the view state is unchanged.
func (t *Tracker) ViewWith(q ViewQuery) (ListView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.sortKey
	switch {
	case q.Sort == "":
	case q.Order != "":
		key = journal.SortKey{Field: q.Sort, Order: q.Order}
	case !journal.ValidSortField(q.Sort):
		return ListView{}, fmt.Errorf("unknown sort field %q", q.Sort)
	default:
		key = key.Select(q.Sort)
	}

	trades, err := journal.ApplySort(journal.ApplyFilter(t.trades, q.Filter), key)
	if err != nil {
		return ListView{}, err
	}
	t.filter = q.Filter
	t.sortKey = key
	return ListView{
		Trades:            trades,
		Total:             len(t.trades),
		Sort:              key,
		CurrentTradeValue: t.currentTradeValue,
	}, nil
}

func (t *Tracker) Stats() journal.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return journal.ComputeStats(t.trades, t.settings, t.currentTradeValue)
}

func (t *Tracker) Trends() journal.Trends {
	t.mu.Lock()
	defer t.mu.Unlock()
	return journal.ComputeTrends(t.trades)
}

func (t *Tracker) Breakdown() journal.Breakdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	return journal.ComputeBreakdown(t.trades)
}

func (t *Tracker) BalanceSeries() []journal.BalancePoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return journal.BuildBalanceSeries(t.trades, t.settings.InitialBalance, t.settings.InitialTradeValue)
}
