package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"

	maxChartPoints = 366
)

var ErrInvalidPeriod = errors.New("dashboard: invalid chart period")

type SalesChartPoint struct {
	Label      string          `json:"label"` // bucket start, YYYY-MM-DD
	Weekday    string          `json:"weekday,omitempty"`
	Orders     int64           `json:"orders"`
	Cash       decimal.Decimal `json:"cash"`
	OnlineBank decimal.Decimal `json:"online_bank"`
	Total      decimal.Decimal `json:"total"`
}

type SalesChartTotals struct {
	Orders     int64           `json:"orders"`
	Cash       decimal.Decimal `json:"cash"`
	OnlineBank decimal.Decimal `json:"online_bank"`
	Total      decimal.Decimal `json:"total"`
}

type SalesChart struct {
	Period      string            `json:"period"` // daily | weekly | monthly
	From        string            `json:"from"`
	To          string            `json:"to"`
	Points      []SalesChartPoint `json:"points"`
	GrandTotals SalesChartTotals  `json:"grand_totals"`
}

func defaultCount(period string) int {
	switch period {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// chartWindow returns the first bucket start, the exclusive end of the range
// and the step between buckets.
func chartWindow(period string, count int, now time.Time) (time.Time, time.Time, func(time.Time) time.Time) {
	today := startOfDay(now)
	switch period {
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7 // Monday = 0
		last := today.AddDate(0, 0, -offset)
		next := func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
		return last.AddDate(0, 0, -7*(count-1)), next(last), next
	case PeriodMonthly:
		last := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		next := func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		return last.AddDate(0, -(count - 1), 0), next(last), next
	default:
		next := func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
		return today.AddDate(0, 0, -(count - 1)), next(today), next
	}
}

func bucketOf(period string, day time.Time) time.Time {
	switch period {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	default:
		return day
	}
}

// SalesChart returns invoice totals per bucket split by payment method.
// Buckets with no sales are present with zero totals.
func (s *Service) SalesChart(ctx context.Context, period string, count int) (*SalesChart, error) {
	if period == "" {
		period = PeriodDaily
	}
	if period != PeriodDaily && period != PeriodWeekly && period != PeriodMonthly {
		return nil, ErrInvalidPeriod
	}
	if count <= 0 {
		count = defaultCount(period)
	}
	if count > maxChartPoints {
		count = maxChartPoints
	}

	now := s.now()
	name := fmt.Sprintf("sales-chart:%s:%d:%s", period, count, now.Format(dayLayout))

	return cached(ctx, s, name, func() (*SalesChart, error) {
		start, end, next := chartWindow(period, count, now)

		rows, err := s.store.DailySales(ctx, start, end)
		if err != nil {
			return nil, err
		}

		points := make([]SalesChartPoint, 0, count)
		index := make(map[string]int, count)
		for b := start; b.Before(end); b = next(b) {
			p := SalesChartPoint{
				Label:      b.Format(dayLayout),
				Cash:       decimal.Zero,
				OnlineBank: decimal.Zero,
				Total:      decimal.Zero,
			}
			if period == PeriodDaily {
				p.Weekday = b.Format("Mon")
			}
			index[p.Label] = len(points)
			points = append(points, p)
		}

		grand := SalesChartTotals{Cash: decimal.Zero, OnlineBank: decimal.Zero, Total: decimal.Zero}
		for _, r := range rows {
			day := inLocation(r.Day, now.Location())
			i, ok := index[bucketOf(period, day).Format(dayLayout)]
			if !ok {
				continue
			}
			p := &points[i]
			switch models.PaymentMethod(r.Method) {
			case models.PaymentMethodCash:
				p.Cash = p.Cash.Add(r.Total)
				grand.Cash = grand.Cash.Add(r.Total)
			case models.PaymentMethodOnlineBank:
				p.OnlineBank = p.OnlineBank.Add(r.Total)
				grand.OnlineBank = grand.OnlineBank.Add(r.Total)
			}
			p.Orders += r.Count
			p.Total = p.Total.Add(r.Total)
			grand.Orders += r.Count
			grand.Total = grand.Total.Add(r.Total)
		}

		return &SalesChart{
			Period:      period,
			From:        start.Format(dayLayout),
			To:          end.AddDate(0, 0, -1).Format(dayLayout),
			Points:      points,
			GrandTotals: grand,
		}, nil
	})
}
