package service

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// displayAmount renders amount in currency for log lines, e.g. "₩71,500" or "$189.84".
// Digits beyond the currency's minor unit are rounded away.
func displayAmount(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.String() + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}
