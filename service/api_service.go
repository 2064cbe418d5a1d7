package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vocdoni/davinci-ballotbox/api"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage      *storage.Storage
	keys         api.KeyStore
	finalizer    api.Finalizer
	API          *api.API
	mu           sync.Mutex
	cancel       context.CancelFunc
	host         string
	port         int
	defaultCurve string
	entropy      io.Reader
}

// NewAPI creates a new APIService instance. The finalizer may be nil, in
// which case tally requests are rejected.
func NewAPI(stg *storage.Storage, keys api.KeyStore, fin api.Finalizer, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		storage:   stg,
		keys:      keys,
		finalizer: fin,
		host:      host,
		port:      port,
	}
}

// SetCryptoConfig sets the curve of the elections created without one and
// the randomness source. Empty values keep the defaults.
func (as *APIService) SetCryptoConfig(defaultCurve string, entropy io.Reader) {
	log.Debugw("setting API crypto configuration", "defaultCurve", defaultCurve)
	as.mu.Lock()
	defer as.mu.Unlock()
	as.defaultCurve = defaultCurve
	as.entropy = entropy
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, as.cancel = context.WithCancel(ctx)

	var err error
	as.API, err = api.New(ctx, &api.APIConfig{
		Host:         as.host,
		Port:         as.port,
		Storage:      as.storage,
		KeyStore:     as.keys,
		Finalizer:    as.finalizer,
		DefaultCurve: as.defaultCurve,
		Entropy:      as.entropy,
	})
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
