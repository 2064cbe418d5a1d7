package main

import (
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/davinci-ballotbox/db"
)

func TestLoadConfig(t *testing.T) {
	c := qt.New(t)
	datadir := t.TempDir()
	t.Setenv("BALLOTBOX_KEYSTORE_PASSWORD", "from-env")
	t.Setenv("BALLOTBOX_FINALIZER_WORKERS", "3")

	cfg, err := loadConfig([]string{"-d", datadir, "--api.port", "9191", "--finalizer.interval", "15s", "--s3.enabled"})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Datadir, qt.Equals, datadir)
	c.Assert(cfg.API.Port, qt.Equals, 9191)
	c.Assert(cfg.API.Host, qt.Equals, defaultAPIHost)
	c.Assert(cfg.DB.Type, qt.Equals, db.TypePebble)
	c.Assert(cfg.DB.Path, qt.Equals, filepath.Join(datadir, "db"))
	c.Assert(cfg.Keystore.Dir, qt.Equals, filepath.Join(datadir, "keys"))
	c.Assert(cfg.Keystore.Password, qt.Equals, "from-env")
	c.Assert(cfg.Finalizer.Interval, qt.Equals, 15*time.Second)
	c.Assert(cfg.Finalizer.Workers, qt.Equals, 3)
	c.Assert(cfg.Crypto.Curve, qt.Equals, "secp256k1")
	c.Assert(cfg.S3.Space, qt.Equals, "ballotbox")

	// s3 without credentials
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "s3 export requires.*")
	cfg.S3.Enabled = false
	c.Assert(validateConfig(cfg), qt.IsNil)

	exps, err := exporters(t.Context(), cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(exps, qt.HasLen, 0)
	cfg.Archive.Dir = filepath.Join(datadir, "archive")
	exps, err = exporters(t.Context(), cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(exps, qt.HasLen, 1)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DB:       DBConfig{Type: db.TypeLevelDB, Path: "db"},
			Keystore: KeystoreConfig{Dir: "keys", Password: "pw"},
			Crypto:   CryptoConfig{Curve: "bn254"},
			Log:      LogConfig{Level: "debug", Output: "stdout"},
		}
	}
	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"valid", func(*Config) {}, ""},
		{"no password", func(c *Config) { c.Keystore.Password = "" }, "keystore password is required.*"},
		{"bad curve", func(c *Config) { c.Crypto.Curve = "ed25519" }, "invalid curve ed25519.*"},
		{"bad db", func(c *Config) { c.DB.Type = "badger" }, "invalid database type badger.*"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level trace"},
		{"negative interval", func(c *Config) { c.Finalizer.Interval = -time.Second }, "finalizer interval cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if tt.err == "" {
				qt.Assert(t, err, qt.IsNil)
				return
			}
			qt.Assert(t, err, qt.ErrorMatches, tt.err)
		})
	}
}

func TestSetupServices(t *testing.T) {
	c := qt.New(t)
	datadir := t.TempDir()
	cfg, err := loadConfig([]string{"-d", datadir, "-k", "pw", "--db.type", db.TypeInMem, "-a", "127.0.0.1", "-p", "0"})
	c.Assert(err, qt.IsNil)
	c.Assert(validateConfig(cfg), qt.IsNil)

	services, err := setupServices(t.Context(), cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(services.API, qt.IsNotNil)
	c.Assert(services.Finalizer, qt.IsNotNil)
	shutdownServices(services)
}
