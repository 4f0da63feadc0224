package core

import "github.com/shopspring/decimal"

// Summary is the derived profit/loss picture of one record.
type Summary struct {
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
	IsProfitable  bool            `json:"isProfitable"`
}

// ComputeSummary derives the financial summary of record from its expenses.
// An unsold record counts as sold for 0. Breaking even is not profitable.
func ComputeSummary(record Record, expenses []Expense) Summary {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}

	sold := decimal.Zero
	if record.SoldPrice != nil {
		sold = decimal.NewFromInt(*record.SoldPrice)
	}

	pl := sold.Sub(decimal.NewFromInt(record.BoughtPrice)).Sub(total)
	return Summary{
		TotalExpenses: total,
		ProfitLoss:    pl,
		IsProfitable:  pl.IsPositive(),
	}
}
