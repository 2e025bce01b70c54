package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/telemetry"
)

// App stores the router and the long lived services, so they can be reused
type App struct {
	Router      *mux.Router
	Config      config.Config
	Store       databases.Store
	Metrics     *metrics.Recorder
	Hub         *realtime.Hub
	Coordinator *dispatch.Coordinator
	Auth        *api.MiddlewareDB
	Ingest      *telemetry.Ingest

	redis  *redis.Client
	cancel context.CancelFunc
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	qt := a.Config.QueryTimeout
	manager := realtime.NewManager(a.Hub, a.Auth, a.Coordinator, a.Metrics, qt)
	m := a.Auth

	e := Emergency{C: a.Coordinator, DB: a.Store, Timeout: qt}
	amb := Ambulance{C: a.Coordinator, DB: a.Store, Timeout: qt}
	h := Hospital{C: a.Coordinator, DB: a.Store, Timeout: qt}
	p := Paramedic{C: a.Coordinator, DB: a.Store, Timeout: qt}
	u := User{C: a.Coordinator, Timeout: qt}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(a.Metrics))

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.Handle("/metrics", a.Metrics.Handler())

	// realtime sockets authenticate during the upgrade and stay open, so
	// they sit outside the request timeout
	r.HandleFunc("/ws/dispatcher", manager.DispatcherHandler)
	r.HandleFunc("/ws/paramedic", manager.ParamedicHandler)

	baseURL := a.Config.BaseURL
	if baseURL == "" {
		baseURL = "/api/v1"
	}
	apiCreate := r.PathPrefix(baseURL).Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.requestTimeout()))

	apiCreate.Handle("/auth/token", m.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", m.Middleware(http.HandlerFunc(m.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/ws-ticket", m.Middleware(http.HandlerFunc(m.CreateWebsocketTicket))).Methods("POST")

	apiCreate.Handle("/emergencies", http.HandlerFunc(e.EmergencyIntakeHandler)).Methods("POST")
	apiCreate.Handle("/emergencies", m.Middleware(http.HandlerFunc(e.EmergenciesHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/active", m.Middleware(http.HandlerFunc(e.ActiveEmergenciesHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/my-active", m.Middleware(http.HandlerFunc(e.MyActiveEmergencyHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/{emergency_id}", m.Middleware(http.HandlerFunc(e.EmergencyByIDHandler))).Methods("GET")
	apiCreate.Handle("/emergencies/{emergency_id}/status", m.Middleware(http.HandlerFunc(e.UpdateEmergencyStatusHandler))).Methods("PATCH")
	apiCreate.Handle("/emergencies/{emergency_id}/acknowledge", m.Middleware(http.HandlerFunc(e.AcknowledgeDispatchHandler))).Methods("POST")

	apiCreate.Handle("/dispatch", m.Middleware(http.HandlerFunc(amb.DispatchHandler))).Methods("POST")
	apiCreate.Handle("/ambulances", m.Middleware(http.HandlerFunc(amb.AmbulancesHandler))).Methods("GET")
	apiCreate.Handle("/ambulances", m.Middleware(http.HandlerFunc(amb.CreateAmbulanceHandler))).Methods("POST")
	apiCreate.Handle("/ambulances/{ambulance_id}", m.Middleware(http.HandlerFunc(amb.AmbulanceByIDHandler))).Methods("GET")
	apiCreate.Handle("/ambulances/{ambulance_id}", m.Middleware(http.HandlerFunc(amb.DeleteAmbulanceHandler))).Methods("DELETE")
	apiCreate.Handle("/ambulances/{ambulance_id}/location", m.Middleware(http.HandlerFunc(amb.UpdateLocationHandler))).Methods("POST")
	apiCreate.Handle("/ambulances/{ambulance_id}/complete", m.Middleware(http.HandlerFunc(amb.CompleteAssignmentHandler))).Methods("POST")

	apiCreate.Handle("/hospitals", m.Middleware(http.HandlerFunc(h.HospitalsHandler))).Methods("GET")
	apiCreate.Handle("/hospitals", m.Middleware(http.HandlerFunc(h.CreateHospitalHandler))).Methods("POST")
	apiCreate.Handle("/hospitals/{hospital_id}", m.Middleware(http.HandlerFunc(h.UpdateHospitalHandler))).Methods("PATCH")
	apiCreate.Handle("/hospitals/{hospital_id}", m.Middleware(http.HandlerFunc(h.DeleteHospitalHandler))).Methods("DELETE")
	apiCreate.Handle("/hospitals/{hospital_id}/capacity", m.Middleware(http.HandlerFunc(h.UpdateCapacityHandler))).Methods("POST")

	apiCreate.Handle("/paramedics", m.Middleware(http.HandlerFunc(p.ParamedicsHandler))).Methods("GET")
	apiCreate.Handle("/paramedics/toggle-availability", m.Middleware(http.HandlerFunc(p.ToggleAvailabilityHandler))).Methods("POST")

	apiCreate.Handle("/users", m.Middleware(http.HandlerFunc(u.UsersHandler))).Methods("GET")
	apiCreate.Handle("/users", m.Middleware(http.HandlerFunc(u.CreateUserHandler))).Methods("POST")
	apiCreate.Handle("/users/{user_id}", m.Middleware(http.HandlerFunc(u.UserByIDHandler))).Methods("GET")
	apiCreate.Handle("/users/{user_id}", m.Middleware(http.HandlerFunc(u.UpdateUserHandler))).Methods("PATCH")
	apiCreate.Handle("/users/{user_id}", m.Middleware(http.HandlerFunc(u.DeleteUserHandler))).Methods("DELETE")

	return r
}

func (a *App) requestTimeout() time.Duration {
	if a.Config.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return a.Config.RequestTimeout
}

// Initialize opens the configured store and builds the app around it
func (a *App) Initialize() error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	return a.Build(store)
}

func (a *App) openStore() (databases.Store, error) {
	switch a.Config.StoreDriver {
	case "memory":
		s := databases.NewMemoryStore(a.Config.LockWaitTimeout)
		if a.Config.SeedPassword != "" {
			if _, err := databases.Seed(context.Background(), s, a.Config.SeedPassword, bcrypt.DefaultCost); err != nil {
				return nil, err
			}
			zap.S().Info("seeded demo fleet into memory store")
		}
		zap.S().Warn("using in-memory store, data is lost on restart")
		return s, nil
	case "mongo", "":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", a.Config.StoreDriver)
	}

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return nil, err
	}
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return nil, err
	}
	zap.S().Info("ambulance-dispatch-api has connected to the database")
	return databases.NewMongoStore(client, databases.NewDatabase(&a.Config, client), a.Config.LockWaitTimeout), nil
}

// Build wires every service on top of store and initializes the router
func (a *App) Build(store databases.Store) error {
	a.Store = store

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	a.Metrics = rec

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Hub = realtime.NewHub()
	var transport realtime.Transport = a.Hub
	if a.Config.RedisURL != "" {
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		relay := realtime.NewRedisRelay(a.redis, a.Config.RedisChannel, a.Hub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				zap.S().Errorw("redis relay stopped", "error", err)
			}
		}()
		transport = relay
		zap.S().Infow("fanning out notifications through redis", "channel", a.Config.RedisChannel)
	}

	router := realtime.NewRouter(transport, a.Metrics)
	a.Coordinator = dispatch.New(store, router, dispatch.WithMetrics(a.Metrics))
	a.Auth = api.NewMiddleware(store, a.Config.JWTSecret, a.Config.WSTicketTTL)

	ingest, err := telemetry.Connect(&a.Config, a.Coordinator)
	if err != nil {
		// vehicles can still report through the REST endpoint
		zap.S().Errorw("location ingest disabled", "error", err)
	}
	a.Ingest = ingest

	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Shutdown stops background services and closes the store
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.Ingest.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.S().Warnw("failed to close redis client", "error", err)
		}
	}
	if a.Store == nil {
		return nil
	}
	return a.Store.Close(ctx)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
