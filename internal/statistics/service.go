package statistics

import (
	"context"
	"errors"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"libraryapi/internal/platform/clock"
	"libraryapi/internal/platform/retry"
)

const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultDeadline     = 15 * time.Second
	queryAttempts       = 3
	topN                = 5
	fanOut              = 4
)

var tracer = otel.Tracer("libraryapi/internal/statistics")

type Options struct {
	// QueryTimeout bounds one attempt of one sub-query.
	QueryTimeout time.Duration
	// Deadline bounds the whole report.
	Deadline  time.Duration
	BaseDelay time.Duration
}

// Aggregator builds reports from concurrent sub-queries and serves them
// from the cache while fresh.
type Aggregator struct {
	repo  Repository
	cache *Cache
	now   clock.Clock
	opts  Options
}

func NewAggregator(repo Repository, cache *Cache, now clock.Clock, opts Options) *Aggregator {
	if now == nil {
		now = clock.Now
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	return &Aggregator{repo: repo, cache: cache, now: now, opts: opts}
}

// ValidPeriod reports whether days is an accepted window.
func ValidPeriod(days int) bool {
	return days >= MinPeriod && days <= MaxPeriod
}

// Report returns the rollup for the last period days and whether it came
// from the cache. Sub-query failures zero their section instead of failing
// the report; only an unreachable database with nothing cached is an error.
func (a *Aggregator) Report(ctx context.Context, period int) (Report, bool, error) {
	if !ValidPeriod(period) {
		return Report{}, false, ErrInvalidPeriod
	}
	key := strconv.Itoa(period)
	if r, ok := a.cache.Get(key); ok {
		return r, true, nil
	}

	ctx, span := tracer.Start(ctx, "statistics.Report")
	span.SetAttributes(attribute.Int("period", period))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.opts.Deadline)
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, a.opts.QueryTimeout)
	err := a.repo.Ping(pingCtx)
	pingCancel()
	if err != nil {
		log.Printf("statistics ping failed period=%d err=%v", period, err)
		span.SetStatus(codes.Error, "database unreachable")
		return Report{}, false, ErrUnavailable
	}

	report := a.build(ctx, period)
	if len(report.Degraded) > 0 {
		span.SetAttributes(attribute.StringSlice("degraded", report.Degraded))
	} else {
		a.cache.Set(key, report)
	}
	return report, false, nil
}

func (a *Aggregator) build(ctx context.Context, period int) Report {
	now := a.now()
	since := now.AddDate(0, 0, -period)
	r := emptyReport(period, now)

	var (
		mu       sync.Mutex
		degraded []string
		events   []LoanEvent
	)
	g := new(errgroup.Group)
	g.SetLimit(fanOut)
	run := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			if err := a.query(ctx, name, fn); err != nil {
				log.Printf("statistics query degraded name=%s period=%d err=%v", name, period, err)
				mu.Lock()
				degraded = append(degraded, name)
				mu.Unlock()
			}
			return nil
		})
	}

	run("inventory", func(ctx context.Context) error {
		o, err := a.repo.Inventory(ctx)
		if err == nil {
			mu.Lock()
			r.Overview.TotalBooks, r.Overview.TotalCopies, r.Overview.AvailableCopies = o.TotalBooks, o.TotalCopies, o.AvailableCopies
			mu.Unlock()
		}
		return err
	})
	run("users", func(ctx context.Context) error {
		n, err := a.repo.CountUsers(ctx)
		if err == nil {
			mu.Lock()
			r.Overview.TotalUsers = n
			mu.Unlock()
		}
		return err
	})
	run("loans", func(ctx context.Context) error {
		c, err := a.repo.CountOpenLoans(ctx, now)
		if err == nil {
			mu.Lock()
			r.Overview.ActiveLoans, r.Overview.OverdueLoans = c.Active, c.Overdue
			mu.Unlock()
		}
		return err
	})
	run("events", func(ctx context.Context) error {
		ev, err := a.repo.LoanEvents(ctx, since)
		if err == nil {
			mu.Lock()
			events = ev
			mu.Unlock()
		}
		return err
	})
	run("categories", func(ctx context.Context) error {
		c, err := a.repo.TopCategories(ctx, since, topN)
		if err == nil {
			mu.Lock()
			r.Insights.TopCategories = c
			mu.Unlock()
		}
		return err
	})
	run("borrowers", func(ctx context.Context) error {
		b, err := a.repo.TopBorrowers(ctx, since, topN)
		if err == nil {
			mu.Lock()
			r.Insights.TopBorrowers = b
			mu.Unlock()
		}
		return err
	})
	run("books", func(ctx context.Context) error {
		b, err := a.repo.PopularBooks(ctx, since, topN)
		if err == nil {
			mu.Lock()
			r.Insights.PopularBooks = b
			mu.Unlock()
		}
		return err
	})
	run("finances", func(ctx context.Context) error {
		f, err := a.repo.Finances(ctx, since)
		if err == nil {
			mu.Lock()
			r.Finances = f
			mu.Unlock()
		}
		return err
	})
	_ = g.Wait()

	r.Trends.Daily = bucketDaily(events, since, now)
	r.Overview.BorrowsInPeriod, r.Overview.ReturnsInPeriod = countInWindow(events, since)
	r.Insights.OnTimeReturnRate = onTimeRate(events, since)
	if len(degraded) > 0 {
		slices.Sort(degraded)
		r.Degraded = degraded
	}
	return r
}

// query runs one sub-query with its own span, per-attempt timeout and retries.
func (a *Aggregator) query(ctx context.Context, name string, fn retry.Func) error {
	ctx, span := tracer.Start(ctx, "statistics.query."+name)
	defer span.End()

	err := retry.Do(ctx, fn,
		retry.WithMaxAttempts(queryAttempts),
		retry.WithBaseDelay(a.opts.BaseDelay),
		retry.WithAttemptTimeout(a.opts.QueryTimeout),
		retry.WithRetryIf(func(err error) bool { return !errors.Is(err, context.Canceled) }),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "degraded")
	}
	return err
}
