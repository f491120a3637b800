package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"libraryapi/internal/activity"
	"libraryapi/internal/auth"
	"libraryapi/internal/book"
	"libraryapi/internal/fine"
	"libraryapi/internal/httpx"
	"libraryapi/internal/notification"
	"libraryapi/internal/platform/clock"
	"libraryapi/internal/platform/database"
	"libraryapi/internal/reminder"
	"libraryapi/internal/statistics"
	"libraryapi/internal/transaction"
	"libraryapi/internal/user"
)

const (
	readyTimeout     = 500 * time.Millisecond
	activityQueue    = 256
	notifyQueue      = 256
	notifyWorkers    = 2
	cacheSweepPeriod = time.Minute
)

// app owns every long-lived component so shutdown can close them in order.
type app struct {
	cfg     config
	db      *database.DB
	handler http.Handler

	limiter       *httpx.RateLimitMiddleware
	statsCache    *statistics.Cache
	notifications *notification.Service
	activity      *activity.Recorder
	reminders     *reminder.Worker
}

func newApp(cfg config, db *database.DB, now clock.Clock) *app {
	if now == nil {
		now = clock.Now
	}

	userService := user.NewService(user.NewSQLRepo(db, cfg.dbTimeout), now)
	bookService := book.NewService(book.NewSQLRepo(db, cfg.dbTimeout), now)
	blacklist := auth.NewBlacklistRepo(db, cfg.dbTimeout, now)
	authService := auth.NewService(cfg.jwtSecret, userService, blacklist)

	notifications := notification.NewService(notification.NewSQLRepo(db, cfg.dbTimeout), now, notification.Options{
		QueueSize: notifyQueue,
		Workers:   notifyWorkers,
	})
	recorder := activity.NewRecorder(activity.NewSQLRepo(db, cfg.dbTimeout), now, activityQueue)

	loans := transaction.NewService(transaction.NewSQLRepo(db, cfg.dbTimeout), userService, notifications, recorder, now, transaction.Options{
		LoanPeriod: cfg.loanPeriod,
		Fines:      fine.NewPolicy(cfg.fineRatePerDay),
		Policy:     transaction.Policy{MaxActiveLoans: cfg.maxActiveLoans, BlockOnOverdue: true},
	})

	statsCache := statistics.NewCache(cfg.statsCacheTTL, cacheSweepPeriod, now)
	aggregator := statistics.NewAggregator(statistics.NewSQLRepo(db), statsCache, now, statistics.Options{
		QueryTimeout: cfg.dbTimeout,
	})

	a := &app{
		cfg:           cfg,
		db:            db,
		limiter:       httpx.NewRateLimitMiddleware(cfg.rateLimitRPS, cfg.rateLimitBurst, cfg.trustProxy),
		statsCache:    statsCache,
		notifications: notifications,
		activity:      recorder,
		reminders:     reminder.NewWorker(loans, bookService, notifications, blacklist, reminder.NewSQLRepo(db, cfg.dbTimeout), now, cfg.reminderInterval, cfg.reminderLead),
	}

	h := handlers{
		users:         user.NewHTTPHandler(userService),
		auth:          auth.NewHTTPHandler(authService),
		books:         book.NewHTTPHandler(bookService),
		transactions:  transaction.NewHTTPHandler(loans),
		statistics:    statistics.NewHTTPHandler(aggregator),
		notifications: notification.NewHTTPHandler(notifications),
		activity:      activity.NewHTTPHandler(recorder),
	}
	router := newRouter(h, httpx.AuthMiddleware(cfg.jwtSecret, blacklist), db)

	a.handler = httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.CORSMiddleware(cfg.allowedOrigins),
		httpx.SecurityHeadersMiddleware(cfg.enableHSTS),
		httpx.RequestSizeLimitMiddleware(cfg.maxBodyBytes),
		a.limiter.Middleware,
	)
	return a
}

type handlers struct {
	users         *user.HTTPHandler
	auth          *auth.HTTPHandler
	books         *book.HTTPHandler
	transactions  *transaction.HTTPHandler
	statistics    *statistics.HTTPHandler
	notifications *notification.HTTPHandler
	activity      *activity.HTTPHandler
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(h handlers, authenticate func(http.Handler) http.Handler, db pinger) *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(f http.HandlerFunc) http.Handler {
		return authenticate(f)
	}
	staff := func(f http.HandlerFunc) http.Handler {
		return httpx.Chain(f, authenticate, httpx.RequireRole(user.RoleAdmin, user.RoleLibrarian))
	}
	admin := func(f http.HandlerFunc) http.Handler {
		return httpx.Chain(f, authenticate, httpx.RequireRole(user.RoleAdmin))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("POST /auth/login", h.auth.Login)
	mux.Handle("POST /auth/logout", authed(h.auth.Logout))

	mux.HandleFunc("POST /users/register", h.users.RegisterUser)
	mux.Handle("POST /users", admin(h.users.CreateUser))
	mux.Handle("GET /users", staff(h.users.ListUsers))
	mux.Handle("GET /users/{id}", authed(h.users.GetUser))
	mux.Handle("GET /me", authed(h.users.GetCurrentUser))

	mux.HandleFunc("GET /books", h.books.List)
	mux.HandleFunc("GET /books/{id}", h.books.Get)
	mux.Handle("POST /books", staff(h.books.Create))
	mux.Handle("PATCH /books/{id}", staff(h.books.Update))
	mux.Handle("DELETE /books/{id}", admin(h.books.Delete))

	mux.Handle("POST /transactions", authed(h.transactions.Borrow))
	mux.Handle("GET /transactions", authed(h.transactions.List))
	mux.Handle("POST /transactions/reconcile", staff(h.transactions.Reconcile))
	mux.Handle("GET /transactions/{id}", authed(h.transactions.Get))
	mux.Handle("PATCH /transactions/{id}", authed(h.transactions.Update))

	mux.Handle("GET /statistics", staff(h.statistics.Get))

	mux.Handle("GET /me/notifications", authed(h.notifications.ListMine))
	mux.Handle("PATCH /me/notifications/{id}/read", authed(h.notifications.MarkRead))
	mux.Handle("POST /notifications", admin(h.notifications.SendSystemAlert))

	mux.Handle("GET /activity", admin(h.activity.List))

	return mux
}

// runReminders blocks until ctx ends.
func (a *app) runReminders(ctx context.Context) {
	if a.cfg.reminderInterval <= 0 {
		log.Println("reminder worker disabled")
		return
	}
	a.reminders.Run(ctx)
}

// close releases components in dependency order; the HTTP server must
// already be shut down.
func (a *app) close(ctx context.Context) error {
	a.limiter.Stop()
	a.statsCache.Close()
	var errs []error
	if err := a.notifications.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.activity.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.db.Close()
	return errors.Join(errs...)
}
