package jobs

import (
	"context"
	"fmt"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/dashboard"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// Reports is the part of the reporting service the jobs read from.
type Reports interface {
	LowStock(ctx context.Context, threshold int) (*dashboard.LowStockResult, error)
	DashboardStats(ctx context.Context) (*dashboard.Stats, error)
}

type Scheduler struct {
	cron      *cron.Cron
	reports   Reports
	threshold int
	logger    *zap.Logger
}

// New registers the low stock scan and the daily summary on standard
// five-field cron specs.
func New(reports Reports, cfg config.JobsConfig, threshold int, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		reports:   reports,
		threshold: threshold,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.LowStockSpec, s.run("low_stock_scan", s.LowStockScan)); err != nil {
		return nil, fmt.Errorf("low stock job %q: %w", cfg.LowStockSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.DailySummarySpec, s.run("daily_summary", s.DailySummary)); err != nil {
		return nil, fmt.Errorf("daily summary job %q: %w", cfg.DailySummarySpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Job scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Job scheduler stop timed out")
	}
}

func (s *Scheduler) run(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) LowStockScan(ctx context.Context) error {
	res, err := s.reports.LowStock(ctx, s.threshold)
	if err != nil {
		return err
	}
	if res.Count == 0 {
		s.logger.Debug("No low stock products", zap.Int("threshold", s.threshold))
		return nil
	}
	for _, p := range res.Products {
		s.logger.Warn("Low stock",
			zap.Uint("product_id", p.ID),
			zap.String("name", p.Name),
			zap.Int("stock_quantity", p.StockQuantity),
			zap.Int("threshold", s.threshold),
		)
	}
	return nil
}

func (s *Scheduler) DailySummary(ctx context.Context) error {
	stats, err := s.reports.DashboardStats(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Daily summary",
		zap.String("date", stats.Date),
		zap.String("sales", stats.TodaySales.StringFixed(2)),
		zap.Int64("orders", stats.TodayOrders),
		zap.String("expenses", stats.TodayExpenses.StringFixed(2)),
		zap.String("profit", stats.TodayProfit.StringFixed(2)),
	)
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
