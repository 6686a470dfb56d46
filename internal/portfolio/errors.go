package portfolio

import (
	"errors"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Order rejection reasons. All of them are detected before any state is
// mutated.
var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUnknownTicker      = errors.New("unknown ticker")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Error code constants returned to API clients
const (
	CodeInvalidOrder       = "INVALID_ORDER"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeInsufficientShares = "INSUFFICIENT_SHARES"
	CodeUnknownTicker      = "UNKNOWN_TICKER"
	CodeInvalidAmount      = "INVALID_AMOUNT"
)

var codes = map[error]string{
	ErrInvalidOrder:       CodeInvalidOrder,
	ErrInsufficientFunds:  CodeInsufficientFunds,
	ErrInsufficientShares: CodeInsufficientShares,
	ErrUnknownTicker:      CodeUnknownTicker,
	ErrInvalidAmount:      CodeInvalidAmount,
}

// OrderError carries a user-facing message for a rejected command.
// errors.Is matches it against the sentinel it was built from.
type OrderError struct {
	Code    string
	Ticker  string
	Message string
	err     error
}

func (e *OrderError) Error() string { return e.Message }

func (e *OrderError) Unwrap() error { return e.err }

func newOrderError(sentinel error, ticker, format string, args ...any) *OrderError {
	return &OrderError{
		Code:    codes[sentinel],
		Ticker:  ticker,
		Message: fmt.Sprintf("%s: %s", sentinel, fmt.Sprintf(format, args...)),
		err:     sentinel,
	}
}

// Code returns the API error code for err, or "" if err is not a rejection.
func Code(err error) string {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Code
	}
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// MoneyFormatter renders amounts in a fixed currency for messages.
type MoneyFormatter struct {
	currency *money.Currency
}

// NewMoneyFormatter creates a formatter for an ISO 4217 currency code. An
// empty or unknown code renders plain decimals.
func NewMoneyFormatter(currency string) MoneyFormatter {
	if currency == "" {
		return MoneyFormatter{}
	}
	return MoneyFormatter{currency: money.GetCurrency(currency)}
}

// ValidCurrency reports whether code is a known ISO 4217 currency
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// Format renders d, e.g. "₩500,075" for KRW.
func (f MoneyFormatter) Format(d decimal.Decimal) string {
	if f.currency == nil {
		return d.String()
	}
	minor := d.Shift(int32(f.currency.Fraction)).Round(0)
	return f.currency.Formatter().Format(minor.IntPart())
}
