package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tally/internal/analytics"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
	"tally/internal/log"
)

const (
	DefaultReportCacheSize = 256
	DefaultReportCacheTTL  = 5 * time.Minute
	DefaultTrendDays       = 30
	MaxTrendDays           = 366
	DefaultTopN            = 10
	maxYear                = 9999
)

// ReportService computes aggregate reports over the ledger. Results are cached
// by report name and filter until the next committed write.
type ReportService struct {
	base
	store ledger.Reader
	cache *cache.LRUCache[any]
	group singleflight.Group
}

// NewReportService builds a report service with an LRU cache of size entries
// living for ttl. A non-positive size uses DefaultReportCacheSize.
func NewReportService(store ledger.Reader, size int, ttl time.Duration, opts ...Option) *ReportService {
	if size <= 0 {
		size = DefaultReportCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultReportCacheTTL
	}
	return &ReportService{
		base:  newBase(log.ComponentReport, opts),
		store: store,
		cache: cache.NewLRUCache[any](size, ttl),
	}
}

// Cache exposes the report cache for lifecycle management.
func (s *ReportService) Cache() *cache.LRUCache[any] {
	return s.cache
}

// Invalidate drops every cached report.
func (s *ReportService) Invalidate() {
	s.cache.Purge()
	s.logger.Debug("Report cache invalidated")
}

// cached returns the report stored under key or computes it once for all
// concurrent callers. A result computed across an invalidation is returned
// but not stored.
func cached[T any](ctx context.Context, s *ReportService, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(T), nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.cache.Generation()
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache.SetIfGeneration(gen, key, out) {
			s.logger.DebugContext(ctx, "Report cached", log.FieldCacheKey, key)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *ReportService) find(ctx context.Context, p filter.Predicate) ([]core.Expense, error) {
	list, err := s.store.FindExpenses(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	return list, nil
}

func (s *ReportService) filtered(ctx context.Context, c filter.Criteria) (filter.Predicate, []core.Expense, error) {
	p, err := c.Build()
	if err != nil {
		return nil, nil, err
	}
	list, err := s.find(ctx, p)
	return p, list, err
}

// Summary returns count, total and average of the matching expenses.
func (s *ReportService) Summary(ctx context.Context, c filter.Criteria) (core.Summary, error) {
	p, err := c.Build()
	if err != nil {
		return core.Summary{}, err
	}
	return cached(ctx, s, "summary?"+p.Key(), func(ctx context.Context) (core.Summary, error) {
		list, err := s.find(ctx, p)
		if err != nil {
			return core.Summary{}, err
		}
		return analytics.Summarize(list), nil
	})
}

// Monthly totals the matching expenses per calendar month, ascending.
func (s *ReportService) Monthly(ctx context.Context, c filter.Criteria) ([]core.MonthTotal, error) {
	p, err := c.Build()
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "monthly?"+p.Key(), func(ctx context.Context) ([]core.MonthTotal, error) {
		list, err := s.find(ctx, p)
		if err != nil {
			return nil, err
		}
		return analytics.GroupByMonth(list), nil
	})
}

// Categories breaks the matching expenses down per category, largest total
// first.
func (s *ReportService) Categories(ctx context.Context, c filter.Criteria) ([]core.CategoryStats, error) {
	p, err := c.Build()
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "categories?"+p.Key(), func(ctx context.Context) ([]core.CategoryStats, error) {
		list, err := s.find(ctx, p)
		if err != nil {
			return nil, err
		}
		return analytics.CategoryBreakdown(list), nil
	})
}

// Top returns the n largest matching expenses.
func (s *ReportService) Top(ctx context.Context, c filter.Criteria, n int) ([]core.Expense, error) {
	_, list, err := s.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return analytics.TopN(list, n), nil
}

// AboveAverage returns the matching expenses strictly above their average.
func (s *ReportService) AboveAverage(ctx context.Context, c filter.Criteria) ([]core.Expense, error) {
	_, list, err := s.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return analytics.AboveAverage(list), nil
}

// Daily totals the last days days, today included, per day.
func (s *ReportService) Daily(ctx context.Context, days int) ([]core.DailyTotal, error) {
	if days <= 0 || days > MaxTrendDays {
		return nil, core.NewValidationError("invalid days", core.FieldError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", MaxTrendDays)})
	}
	to := s.today()
	from := core.Date{Time: to.AddDate(0, 0, -(days - 1))}
	key := "daily?" + from.String() + ".." + to.String()
	return cached(ctx, s, key, func(ctx context.Context) ([]core.DailyTotal, error) {
		list, err := s.find(ctx, filter.Between(from, to))
		if err != nil {
			return nil, err
		}
		return analytics.DailyTrend(list, from, to), nil
	})
}

// CategoryStats describes the expenses of one category, optionally limited to
// a date range.
func (s *ReportService) CategoryStats(ctx context.Context, categoryID int64, from, to *core.Date) (core.Statistics, error) {
	ok, err := s.store.CategoryExists(ctx, categoryID)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.Statistics{}, core.NewNotFound("category", categoryID)
	}
	p, err := filter.Criteria{CategoryID: &categoryID, StartDate: from, EndDate: to}.Build()
	if err != nil {
		return core.Statistics{}, err
	}
	return cached(ctx, s, "category-stats?"+p.Key(), func(ctx context.Context) (core.Statistics, error) {
		list, err := s.find(ctx, p)
		if err != nil {
			return core.Statistics{}, err
		}
		return analytics.CategoryStatistics(list), nil
	})
}

// Growth compares the total of month with the month before. Both months load
// concurrently.
func (s *ReportService) Growth(ctx context.Context, month core.YearMonth) (analytics.Growth, error) {
	if err := month.Validate(); err != nil {
		return analytics.Growth{}, core.NewInvalidInput("invalid month: %v", err)
	}
	return cached(ctx, s, "growth?"+month.String(), func(ctx context.Context) (analytics.Growth, error) {
		var current, previous decimal.Decimal
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			list, err := s.find(gctx, filter.Month(month, nil))
			current = analytics.Total(list)
			return err
		})
		g.Go(func() error {
			list, err := s.find(gctx, filter.Month(month.Prev(), nil))
			previous = analytics.Total(list)
			return err
		})
		if err := g.Wait(); err != nil {
			return analytics.Growth{}, err
		}
		return analytics.MonthlyGrowth(current, previous), nil
	})
}

// Overview bundles the reports of one month, computed concurrently.
type Overview struct {
	Month      core.YearMonth
	Summary    core.Summary
	Categories []core.CategoryStats
	Growth     analytics.Growth
	Top        []core.Expense
}

func (s *ReportService) Overview(ctx context.Context, month core.YearMonth) (Overview, error) {
	if err := month.Validate(); err != nil {
		return Overview{}, core.NewInvalidInput("invalid month: %v", err)
	}
	start, end := month.First(), month.Last()
	c := filter.Criteria{StartDate: &start, EndDate: &end}

	out := Overview{Month: month}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Summary, err = s.Summary(gctx, c)
		return err
	})
	g.Go(func() (err error) {
		out.Categories, err = s.Categories(gctx, c)
		return err
	})
	g.Go(func() (err error) {
		out.Growth, err = s.Growth(gctx, month)
		return err
	})
	g.Go(func() (err error) {
		out.Top, err = s.Top(gctx, c, DefaultTopN)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// YearOverYear totals two years month by month.
func (s *ReportService) YearOverYear(ctx context.Context, year1, year2 int) ([]core.MonthTotal, error) {
	if year1 < 1 || year2 < 1 || year1 > maxYear || year2 > maxYear {
		return nil, core.NewInvalidInput("invalid year")
	}
	key := "yoy?" + strconv.Itoa(year1) + "," + strconv.Itoa(year2)
	return cached(ctx, s, key, func(ctx context.Context) ([]core.MonthTotal, error) {
		list, err := s.find(ctx, nil)
		if err != nil {
			return nil, err
		}
		return analytics.YearOverYear(list, year1, year2), nil
	})
}
