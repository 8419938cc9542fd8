package journal

import (
	"regexp"
	"strings"
	"time"

	"trading-journal/internal/models"
)

var (
	pairPattern     = regexp.MustCompile(`(?i)^[A-Z]{2,10}USDT?$`)
	emailPattern    = regexp.MustCompile(`\S+@\S+\.\S+`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

const minPasswordLength = 8

// ValidationError reports a malformed input field. It never reaches the backend.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every field error of one form.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when no field failed.
func (es ValidationErrors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

func (es *ValidationErrors) add(field, message string) {
	*es = append(*es, &ValidationError{Field: field, Message: message})
}

// TradeInput is the user-entered part of a trade; the rest is derived.
type TradeInput struct {
	TradeDate    string          `json:"trade_date" yaml:"trade_date"`
	Pair         string          `json:"pair" yaml:"pair"`
	ValueTrade   float64         `json:"value_trade" yaml:"value_trade"`
	Position     models.Position `json:"position" yaml:"position"`
	Type         models.Outcome  `json:"type" yaml:"type"`
	Percent      float64         `json:"percent" yaml:"percent"`
	Observations string          `json:"observations" yaml:"observations"`
}

// ValidateTrade checks a trade form. today is the caller's current date;
// trade dates after it are rejected.
func ValidateTrade(in TradeInput, today time.Time) error {
	var errs ValidationErrors

	if strings.TrimSpace(in.TradeDate) == "" {
		errs.add("trade_date", "trade date is required")
	} else if d, err := models.ParseDate(in.TradeDate); err != nil {
		errs.add("trade_date", "trade date must be YYYY-MM-DD")
	} else {
		y, m, dd := today.Date()
		startOfToday := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
		if d.After(startOfToday) {
			errs.add("trade_date", "trade date cannot be in the future")
		}
	}

	pair := strings.TrimSpace(in.Pair)
	if pair == "" {
		errs.add("pair", "pair is required")
	} else if !pairPattern.MatchString(pair) {
		errs.add("pair", "invalid pair format (e.g. BTCUSDT)")
	}

	if in.Position == "" {
		errs.add("position", "position is required")
	} else if !in.Position.Valid() {
		errs.add("position", "position must be long or short")
	}

	if in.Type == "" {
		errs.add("type", "result type is required")
	} else if !in.Type.Valid() {
		errs.add("type", "result type must be profit or loss")
	}

	if in.Percent <= 0 || in.Percent > 100 {
		errs.add("percent", "percent must be between 0 and 100")
	}

	if in.ValueTrade <= 0 {
		errs.add("value_trade", "trade value must be greater than zero")
	}

	return errs.Err()
}

// ValidateSettings checks the settings form.
func ValidateSettings(s models.Settings) error {
	var errs ValidationErrors

	if s.InitialBalance <= 0 {
		errs.add("bank_initial", "initial balance must be greater than zero")
	}
	if s.InitialTradeValue <= 0 {
		errs.add("initial_trade_value", "first trade value must be greater than zero")
	}
	if s.PercentTarget <= 0 || s.PercentTarget > 100 {
		errs.add("percent_target", "percent must be between 0 and 100")
	}
	if s.InitialTradeValue > 0 && s.InitialTradeValue >= s.InitialBalance {
		errs.add("initial_trade_value", "first trade value must be lower than the initial balance")
	}

	return errs.Err()
}

// ValidateSignup checks the sign-up form.
func ValidateSignup(email, username, password string) error {
	var errs ValidationErrors

	switch {
	case email == "":
		errs.add("email", "e-mail is required")
	case !emailPattern.MatchString(email):
		errs.add("email", "invalid e-mail")
	}

	switch {
	case username == "":
		errs.add("username", "username is required")
	case !usernamePattern.MatchString(username):
		errs.add("username", "3-20 characters: letters, digits and underscore")
	}

	switch {
	case password == "":
		errs.add("password", "password is required")
	case len(password) < minPasswordLength:
		errs.add("password", "password must have at least 8 characters")
	}

	return errs.Err()
}

// ValidateLogin checks the login form.
func ValidateLogin(username, password string) error {
	var errs ValidationErrors

	if username == "" {
		errs.add("username", "username is required")
	} else if len(username) < 3 {
		errs.add("username", "username must have at least 3 characters")
	}
	if password == "" {
		errs.add("password", "password is required")
	}

	return errs.Err()
}

// NormalizeTradeInput trims the text fields and upper-cases the pair.
func NormalizeTradeInput(in TradeInput) TradeInput {
	in.TradeDate = strings.TrimSpace(in.TradeDate)
	in.Pair = strings.ToUpper(strings.TrimSpace(in.Pair))
	in.Observations = strings.TrimSpace(in.Observations)
	return in
}

// BuildTrade derives result and newValue for a validated input.
func BuildTrade(userID string, in TradeInput) models.Trade {
	in = NormalizeTradeInput(in)
	result, newValue := models.ComputeResult(in.ValueTrade, in.Percent, in.Type)
	return models.Trade{
		UserID:       userID,
		TradeDate:    in.TradeDate,
		Pair:         in.Pair,
		Position:     in.Position,
		ValueTrade:   in.ValueTrade,
		Type:         in.Type,
		Percent:      in.Percent,
		Result:       result,
		NewValue:     newValue,
		Observations: in.Observations,
	}
}
