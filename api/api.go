package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
	"github.com/vocdoni/davinci-ballotbox/storage/ephemeral"
	"github.com/vocdoni/davinci-ballotbox/tally"
)

const (
	maxRequestBodyLog  = 512     // Maximum length of request body to log
	maxRequestBodySize = 1 << 20 // Maximum accepted request body
	defaultJobsSize    = 1024
	defaultJobsTTL     = time.Hour
	shutdownTimeout    = 10 * time.Second
)

// KeyStore keeps the private keys of the elections. keystore.KeyStore
// implements it.
type KeyStore interface {
	Exists(electionID uint64) (bool, error)
	Store(electionID uint64, kp *elgamal.Keypair) error
	Delete(electionID uint64) error
}

// Finalizer tallies an election. finalizer.Finalizer implements it.
type Finalizer interface {
	Finalize(ctx context.Context, electionID uint64) (*tally.Result, error)
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Storage   *storage.Storage
	KeyStore  KeyStore
	Finalizer Finalizer
	// Jobs keeps the tally job records. A bounded TTL store is created
	// when nil.
	Jobs ephemeral.Store[TallyJob]
	// DefaultCurve is used for elections created without a curve.
	DefaultCurve string
	// Entropy is the randomness source of key generation and encryption,
	// crypto/rand when nil.
	Entropy io.Reader
}

// API type represents the API HTTP server.
type API struct {
	ctx          context.Context
	router       *chi.Mux
	server       *http.Server
	storage      *storage.Storage
	keys         KeyStore
	finalizer    Finalizer
	jobs         ephemeral.Store[TallyJob]
	defaultCurve string
	entropy      io.Reader
	electionLock sync.Mutex // serialises election creation
	jobsWg       sync.WaitGroup
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. The server stops when ctx is done.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	a, err := newAPI(ctx, conf)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s:%d: %w", conf.Host, conf.Port, err)
	}
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Infow("starting API server", "address", listener.Addr().String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("API server shutdown failed", "error", err.Error())
		}
		a.jobsWg.Wait()
		log.Infow("API server stopped")
	}()
	return a, nil
}

// newAPI builds the API and its router without listening.
func newAPI(ctx context.Context, conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.KeyStore == nil {
		return nil, fmt.Errorf("missing key store")
	}
	a := &API{
		ctx:          ctx,
		storage:      conf.Storage,
		keys:         conf.KeyStore,
		finalizer:    conf.Finalizer,
		jobs:         conf.Jobs,
		defaultCurve: conf.DefaultCurve,
		entropy:      conf.Entropy,
	}
	if a.jobs == nil {
		a.jobs = ephemeral.NewLRU[TallyJob](defaultJobsSize, defaultJobsTTL)
	}
	if a.defaultCurve == "" {
		a.defaultCurve = curves.Default
	}
	if !curves.IsValid(a.defaultCurve) {
		return nil, fmt.Errorf("invalid default curve %q", a.defaultCurve)
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// election endpoints
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.newElection)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.listElections)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.election)
	// ballot endpoints
	log.Infow("register handler", "endpoint", EncryptEndpoint, "method", "POST")
	a.router.Post(EncryptEndpoint, a.encryptBallot)
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "POST")
	a.router.Post(BallotsEndpoint, a.submitBallot)
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "GET")
	a.router.Get(BallotsEndpoint, a.ballotCount)
	// tally endpoints
	log.Infow("register handler", "endpoint", TallyEndpoint, "method", "POST")
	a.router.Post(TallyEndpoint, a.startTally)
	log.Infow("register handler", "endpoint", JobEndpoint, "method", "GET")
	a.router.Get(JobEndpoint, a.job)
	log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "GET")
	a.router.Get(ResultsEndpoint, a.results)

	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Write(w)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RequestSize(maxRequestBodySize))
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
