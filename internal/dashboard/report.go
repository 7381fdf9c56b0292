package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const maxReportDays = 731

var ErrInvalidRange = errors.New("dashboard: invalid report range")

type ReportTotals struct {
	Sales    decimal.Decimal `json:"sales"`
	Orders   int64           `json:"orders"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

type ReportDay struct {
	Date     string          `json:"date"`
	Sales    decimal.Decimal `json:"sales"`
	Orders   int64           `json:"orders"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

type Report struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Totals   ReportTotals   `json:"totals"`
	Products []ProductSales `json:"products"`
	Days     []ReportDay    `json:"days"`
}

// Report covers the calendar days from..to inclusive.
func (s *Service) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	from, to = startOfDay(from), startOfDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	if from.AddDate(0, 0, maxReportDays-1).Before(to) {
		return nil, fmt.Errorf("%w: more than %d days", ErrInvalidRange, maxReportDays)
	}

	name := fmt.Sprintf("report:%s:%s", from.Format(dayLayout), to.Format(dayLayout))
	return cached(ctx, s, name, func() (*Report, error) {
		end := to.AddDate(0, 0, 1)

		sales, err := s.store.DailySales(ctx, from, end)
		if err != nil {
			return nil, err
		}
		expenses, err := s.store.DailyExpenses(ctx, from, to)
		if err != nil {
			return nil, err
		}
		products, err := s.store.BestSellers(ctx, &from, &end, 0)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []ProductSales{}
		}

		var days []ReportDay
		index := map[string]int{}
		for d := from; d.Before(end); d = d.AddDate(0, 0, 1) {
			key := d.Format(dayLayout)
			index[key] = len(days)
			days = append(days, ReportDay{Date: key, Sales: decimal.Zero, Expenses: decimal.Zero})
		}

		totals := ReportTotals{Sales: decimal.Zero, Expenses: decimal.Zero}
		for _, r := range sales {
			i, ok := index[inLocation(r.Day, from.Location()).Format(dayLayout)]
			if !ok {
				continue
			}
			days[i].Sales = days[i].Sales.Add(r.Total)
			days[i].Orders += r.Count
			totals.Sales = totals.Sales.Add(r.Total)
			totals.Orders += r.Count
		}
		for _, r := range expenses {
			i, ok := index[inLocation(r.Day, from.Location()).Format(dayLayout)]
			if !ok {
				continue
			}
			days[i].Expenses = days[i].Expenses.Add(r.Total)
			totals.Expenses = totals.Expenses.Add(r.Total)
		}
		for i := range days {
			days[i].Profit = days[i].Sales.Sub(days[i].Expenses)
		}
		totals.Profit = totals.Sales.Sub(totals.Expenses)

		return &Report{
			From:     from.Format(dayLayout),
			To:       to.Format(dayLayout),
			Totals:   totals,
			Products: products,
			Days:     days,
		}, nil
	})
}
