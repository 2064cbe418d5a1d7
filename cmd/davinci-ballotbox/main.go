package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vocdoni/davinci-ballotbox/archive"
	"github.com/vocdoni/davinci-ballotbox/db/metadb"
	"github.com/vocdoni/davinci-ballotbox/finalizer"
	"github.com/vocdoni/davinci-ballotbox/keystore"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/service"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// Services holds all the running services
type Services struct {
	Storage   *storage.Storage
	KeyStore  *keystore.KeyStore
	API       *service.APIService
	Finalizer *service.FinalizerService
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting davinci-ballotbox", "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		shutdownServices(services)
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// exporters builds the archive exporters enabled in the configuration.
func exporters(ctx context.Context, cfg *Config) ([]archive.Exporter, error) {
	var exps []archive.Exporter
	if cfg.Archive.Dir != "" {
		dir, err := archive.NewDirExporter(cfg.Archive.Dir)
		if err != nil {
			return nil, err
		}
		log.Infow("archiving tallied elections", "dir", cfg.Archive.Dir)
		exps = append(exps, dir)
	}
	if cfg.S3.Enabled {
		s3, err := archive.NewS3Exporter(ctx, cfg.S3.exporterConfig())
		if err != nil {
			return nil, err
		}
		if err := s3.Ping(ctx); err != nil {
			return nil, fmt.Errorf("s3 not reachable: %w", err)
		}
		log.Infow("uploading tallied elections", "host", cfg.S3.Host, "space", cfg.S3.Space, "prefix", cfg.S3.Prefix)
		exps = append(exps, s3)
	}
	return exps, nil
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	log.Infow("initializing storage", "type", cfg.DB.Type, "path", cfg.DB.Path)
	storagedb, err := metadb.New(cfg.DB.Type, cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	log.Infow("opening keystore", "dir", cfg.Keystore.Dir)
	services.KeyStore, err = keystore.New(cfg.Keystore.Dir, cfg.Keystore.Password)
	if err != nil {
		return services, fmt.Errorf("failed to open keystore: %w", err)
	}

	exps, err := exporters(ctx, cfg)
	if err != nil {
		return services, fmt.Errorf("failed to setup archive exporters: %w", err)
	}

	log.Infow("starting finalizer service",
		"monitorInterval", cfg.Finalizer.Interval.String(),
		"workers", cfg.Finalizer.Workers,
		"proofs", cfg.Finalizer.Proofs)
	services.Finalizer = service.NewFinalizer(services.Storage, services.KeyStore, finalizer.Options{
		Workers:          cfg.Finalizer.Workers,
		DecryptionProofs: cfg.Finalizer.Proofs,
		Exporters:        exps,
	})
	if err := services.Finalizer.Start(ctx, cfg.Finalizer.Interval); err != nil {
		return services, fmt.Errorf("failed to start finalizer service: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Storage, services.KeyStore, services.Finalizer,
		cfg.API.Host, cfg.API.Port, cfg.API.DisableLogging)
	services.API.SetCryptoConfig(cfg.Crypto.Curve, nil)
	if err := services.API.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Infow("davinci-ballotbox is running, ready to collect ballots!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.Finalizer != nil {
		services.Finalizer.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
