package currency

import (
	"database/sql/driver"
	"errors"
)

type Currency string

const (
	CurrencyARS Currency = "ARS"
)

// Default is the currency of every checkout created by the service.
const Default = CurrencyARS

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

func ParseCurrency(s string) (Currency, error) {
	switch s {
	case CurrencyARS.String():
		return CurrencyARS, nil
	case "":
		return Default, nil
	default:
		return "", ErrInvalidCurrency
	}
}
