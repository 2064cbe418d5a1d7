package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vocdoni/davinci-ballotbox/archive"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/log"
)

const (
	defaultAPIHost          = "0.0.0.0"
	defaultAPIPort          = 9090
	defaultDBType           = db.TypePebble
	defaultFinalizeInterval = time.Minute
	defaultLogLevel         = "info"
	defaultLogOutput        = "stdout"
	defaultDatadir          = ".ballotbox" // Will be prefixed with user's home directory
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	API       APIConfig
	DB        DBConfig
	Keystore  KeystoreConfig
	Crypto    CryptoConfig
	Finalizer FinalizerConfig
	Archive   ArchiveConfig
	S3        S3Config
	Log       LogConfig
	Datadir   string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DisableLogging bool   `mapstructure:"disablelogging"`
}

// DBConfig selects the storage backend. For mongodb the path is the
// database name and the server URL is read from $MONGODB_URL.
type DBConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// KeystoreConfig holds the location and password of the election keys
type KeystoreConfig struct {
	Dir      string `mapstructure:"dir"`
	Password string `mapstructure:"password"`
}

// CryptoConfig holds the encryption defaults
type CryptoConfig struct {
	Curve string `mapstructure:"curve"`
}

// FinalizerConfig holds the tally configuration
type FinalizerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
	Proofs   bool          `mapstructure:"proofs"`
}

// ArchiveConfig holds the local archive export configuration
type ArchiveConfig struct {
	Dir string `mapstructure:"dir"`
}

// S3Config holds the S3 archive export configuration
type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"key"`
	SecretKey string `mapstructure:"secret"`
	Space     string `mapstructure:"space"`
	Prefix    string `mapstructure:"prefix"`
	Public    bool   `mapstructure:"public"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// exporterConfig converts the S3 settings to the archive exporter ones.
func (c S3Config) exporterConfig() archive.S3Config {
	return archive.S3Config{
		Enabled:   c.Enabled,
		HostBase:  c.Host,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Space:     c.Space,
		Prefix:    c.Prefix,
		Public:    c.Public,
	}
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()
	fs := flag.NewFlagSet("davinci-ballotbox", flag.ContinueOnError)

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)
	s3Defaults := archive.DefaultS3Config()

	fs.StringP("api.host", "a", defaultAPIHost, "API host")
	fs.IntP("api.port", "p", defaultAPIPort, "API port")
	fs.Bool("api.disableLogging", false, "disable the API request logging")
	fs.String("db.type", defaultDBType, fmt.Sprintf("database type %v", []string{db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMem}))
	fs.String("db.path", "", "database path, or the database name for mongodb (default datadir/db)")
	fs.String("keystore.dir", "", "directory of the encrypted election keys (default datadir/keys)")
	fs.StringP("keystore.password", "k", "", "password of the election keys (required)")
	fs.StringP("crypto.curve", "c", curves.Default, fmt.Sprintf("default election curve %v", curves.Curves()))
	fs.DurationP("finalizer.interval", "i", defaultFinalizeInterval, "how often ended elections are tallied, 0 to only tally on demand")
	fs.Int("finalizer.workers", 0, "number of tally workers (0 for the number of CPUs)")
	fs.Bool("finalizer.proofs", false, "include a decryption proof per ballot in the results")
	fs.String("archive.dir", "", "directory where tallied elections are archived (disabled if empty)")
	fs.Bool("s3.enabled", false, "upload the archives to an S3 compatible store")
	fs.String("s3.host", s3Defaults.HostBase, "S3 host")
	fs.String("s3.region", s3Defaults.Region, "S3 region")
	fs.String("s3.key", "", "S3 access key")
	fs.String("s3.secret", "", "S3 secret key")
	fs.String("s3.space", s3Defaults.Space, "S3 bucket name")
	fs.String("s3.prefix", s3Defaults.Prefix, "S3 object key prefix")
	fs.Bool("s3.public", false, "publish the uploaded archives with a public-read ACL")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr, json or filepath)")
	fs.StringP("datadir", "d", defaultDatadirPath, "data directory for database and key files")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "davinci-ballotbox %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: davinci-ballotbox [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, BALLOTBOX_KEYSTORE_PASSWORD or BALLOTBOX_API_PORT\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with default settings\n")
		fmt.Fprintf(os.Stderr, "  davinci-ballotbox --keystore.password=secret\n\n")
		fmt.Fprintf(os.Stderr, "  # Tally ended elections every 10 seconds and archive them\n")
		fmt.Fprintf(os.Stderr, "  davinci-ballotbox -k secret --finalizer.interval=10s --archive.dir=/var/lib/ballotbox/archive\n")
	}

	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("BALLOTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.DB.Path == "" && cfg.DB.Type != db.TypeMongo {
		cfg.DB.Path = filepath.Join(cfg.Datadir, "db")
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "ballotbox"
	}
	if cfg.Keystore.Dir == "" {
		cfg.Keystore.Dir = filepath.Join(cfg.Datadir, "keys")
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Keystore.Password == "" {
		return fmt.Errorf("keystore password is required (use --keystore.password flag or BALLOTBOX_KEYSTORE_PASSWORD environment variable)")
	}
	if !curves.IsValid(cfg.Crypto.Curve) {
		return fmt.Errorf("invalid curve %s, available curves: %v", cfg.Crypto.Curve, curves.Curves())
	}
	dbTypes := []string{db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMem}
	if !slices.Contains(dbTypes, cfg.DB.Type) {
		return fmt.Errorf("invalid database type %s, available types: %v", cfg.DB.Type, dbTypes)
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level %s", cfg.Log.Level)
	}
	if cfg.Finalizer.Interval < 0 {
		return fmt.Errorf("finalizer interval cannot be negative")
	}
	if cfg.Finalizer.Workers < 0 {
		return fmt.Errorf("finalizer workers cannot be negative")
	}
	if cfg.S3.Enabled && (cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "") {
		return fmt.Errorf("s3 export requires --s3.key and --s3.secret")
	}
	return nil
}
