package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for trade dates everywhere.
const DateLayout = "2006-01-02"

// Position is the directional stance of a trade.
type Position string

const (
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

func (p Position) Valid() bool {
	return p == PositionLong || p == PositionShort
}

// Outcome classifies a trade as a win or a loss. It is the "type" column.
type Outcome string

const (
	OutcomeProfit Outcome = "profit"
	OutcomeLoss   Outcome = "loss"
)

func (o Outcome) Valid() bool {
	return o == OutcomeProfit || o == OutcomeLoss
}

// Trade represents one journaled trade.
// ID is assigned by the store on insert and is empty before that.
type Trade struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id,omitempty" yaml:"id,omitempty"`
	UserID       string    `gorm:"index;not null" json:"user_id" yaml:"user_id"`
	TradeDate    string    `gorm:"index;size:10;not null" json:"trade_date" yaml:"trade_date"`
	Pair         string    `gorm:"size:16;not null" json:"pair" yaml:"pair"`
	Position     Position  `gorm:"size:8;not null" json:"position" yaml:"position"`
	ValueTrade   float64   `gorm:"not null" json:"value_trade" yaml:"value_trade"`
	Type         Outcome   `gorm:"size:8;not null" json:"type" yaml:"type"`
	Percent      float64   `gorm:"not null" json:"percent" yaml:"percent"`
	Result       float64   `gorm:"not null" json:"result" yaml:"result"`
	NewValue     float64   `gorm:"not null" json:"new_value" yaml:"new_value"`
	Observations string    `json:"observations" yaml:"observations"`
	CreatedAt    time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// UnmarshalJSON accepts the id as a JSON string or number; rows from a
// serial-keyed trades table carry numeric ids.
func (t *Trade) UnmarshalJSON(data []byte) error {
	type plain Trade
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.ID)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		t.ID = ""
	case raw[0] == '"':
		return json.Unmarshal(raw, &t.ID)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("invalid trade id %s: %w", raw, err)
		}
		t.ID = n.String()
	}
	return nil
}

// Date parses TradeDate as a calendar date.
func (t Trade) Date() (time.Time, error) {
	return ParseDate(t.TradeDate)
}

// SignedPercent is the percent with the sign of the outcome, as shown in exports.
func (t Trade) SignedPercent() float64 {
	if t.Type == OutcomeLoss {
		return -t.Percent
	}
	return t.Percent
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ComputeResult derives the signed result and the follow-up trade value.
// The absolute result and newValue are both rounded to 2 decimals, half away from zero.
func ComputeResult(valueTrade, percent float64, outcome Outcome) (result, newValue float64) {
	value := decimal.NewFromFloat(valueTrade)
	abs := value.Mul(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100)).Round(2)
	if outcome == OutcomeLoss {
		abs = abs.Neg()
	}
	result = abs.InexactFloat64()
	newValue = value.Add(abs).Round(2).InexactFloat64()
	return result, newValue
}

// CurrentTradeValue is the suggested value for the next trade: the newValue
// of the last trade in chronological order, or initialTradeValue when empty.
// trades must already be sorted by trade date ascending.
func CurrentTradeValue(trades []Trade, initialTradeValue float64) float64 {
	if len(trades) == 0 {
		return initialTradeValue
	}
	return trades[len(trades)-1].NewValue
}
