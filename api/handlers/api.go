package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/api"
	"github.com/seanlongden/lead-formatter-waitlist/api/scheduler"
	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/convertkit"
	"github.com/seanlongden/lead-formatter-waitlist/databases"
	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/mailer"
	"github.com/seanlongden/lead-formatter-waitlist/metrics"
	"github.com/seanlongden/lead-formatter-waitlist/models"
	"github.com/seanlongden/lead-formatter-waitlist/waitlist"
)

const (
	requestTimeout = 30 * time.Second
	eventQueueSize = 256
	resyncBatch    = eventQueueSize / 2
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Service   *waitlist.Service
	Bus       events.Bus
	Scheduler *scheduler.Scheduler

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	wl := Waitlist{Service: a.Service, Config: a.Config}
	admin := Admin{Service: a.Service}
	adminAuth := api.NewAdminAuth(a.Config.AdminKey)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiWaitlist := r.PathPrefix("/waitlist").Subrouter()
	apiWaitlist.Use(api.TimeoutMiddleware(requestTimeout))

	signupLimit := api.RateLimit(a.Config.Limits.SignupRequests, a.Config.Limits.SignupWindow,
		"Too many signups from this IP. Please try again later.")
	resendLimit := api.RateLimit(a.Config.Limits.ResendRequests, a.Config.Limits.ResendWindow,
		"Too many requests. Please wait before requesting again.")

	apiWaitlist.Handle("/signup", signupLimit(http.HandlerFunc(wl.SignupHandler))).Methods("POST")
	apiWaitlist.Handle("/resend-link", resendLimit(http.HandlerFunc(wl.ResendLinkHandler))).Methods("POST")
	apiWaitlist.HandleFunc("/verify", wl.VerifyHandler).Methods("GET")
	apiWaitlist.HandleFunc("/dashboard/{referralCode}", wl.DashboardHandler).Methods("GET")
	apiWaitlist.HandleFunc("/validate/{referralCode}", wl.ValidateHandler).Methods("GET")
	apiWaitlist.HandleFunc("/stats", wl.StatsHandler).Methods("GET")

	apiAdmin := apiWaitlist.PathPrefix("/admin").Subrouter()
	apiAdmin.Use(adminAuth.Middleware)
	apiAdmin.HandleFunc("/users", admin.UsersHandler).Methods("GET")
	apiAdmin.HandleFunc("/export", admin.ExportHandler).Methods("GET")

	// the single-page app owns every other path
	if a.Config.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: a.Config.StaticDir}).Methods("GET", "HEAD")
	}
	return r
}

// Handler wraps the router with CORS for the front end
func (a *App) Handler() http.Handler {
	return api.CORS(a.Config.FrontendURL)(a.Router)
}

// Initialize is invoked by main to connect with the database, wire the waitlist and create a router
func (a *App) Initialize() error {
	metrics.MustRegister()

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	a.client = client

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	zap.S().Infow("lead-formatter-waitlist has connected to the database", "database", a.Config.DatabaseName)

	if err := databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		return err
	}

	users := databases.NewWaitlistUserDatabase(a.dbHelper)
	referrals := databases.NewReferralDatabase(a.dbHelper)

	bus, err := newBus(a.Config.NATSURL)
	if err != nil {
		return err
	}
	a.Bus = bus

	syncer := convertkit.NewSyncer(convertkit.New(a.Config.ConvertKit), users, a.Config.ConvertKit.Timeout)
	if err := a.Bus.Subscribe(syncer.Handle); err != nil {
		return fmt.Errorf("failed to subscribe convertkit syncer: %w", err)
	}
	if !a.Config.ConvertKit.Enabled() {
		zap.S().Warn("convertkit is not configured, subscriber sync is disabled")
	}

	a.Service = waitlist.NewService(&a.Config, users, referrals, a.Bus, mailer.New(a.Config.Mail))

	a.Scheduler = a.newScheduler(databases.NewSchedulerLockDatabase(a.dbHelper))
	if err := a.Scheduler.Start(); err != nil {
		return err
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) newScheduler(lockDB databases.SchedulerLockDatabase) *scheduler.Scheduler {
	s := scheduler.NewScheduler(a.Service, lockDB, a.Config.ResyncSchedule)
	// one resync run leaves half the queue for live events
	s.ResyncBatch = resyncBatch
	s.SyncEnabled = a.Config.ConvertKit.Enabled()
	return s
}

func newBus(natsURL string) (events.Bus, error) {
	if natsURL == "" {
		zap.S().Info("using in-process event bus")
		return events.NewLocalBus(eventQueueSize), nil
	}
	bus, err := events.NewNATSBus(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	zap.S().Infow("using nats event bus", "url", natsURL)
	return bus, nil
}

// Shutdown stops background work and closes the database connection. Queued events and
// emails are flushed before the connection goes away.
func (a *App) Shutdown(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			zap.S().Warnw("failed to close event bus", "error", err)
		}
	}
	if a.Service != nil {
		a.Service.Wait()
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	config.WriteJSON(w, http.StatusOK, models.HealthCheckResponse{
		Alive:     true,
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
