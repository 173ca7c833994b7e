package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/s3drive/internal/circuit"
	"github.com/objectfs/s3drive/internal/driver"
	"github.com/objectfs/s3drive/internal/listing"
	"github.com/objectfs/s3drive/internal/metrics"
	"github.com/objectfs/s3drive/internal/storage/s3"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/utils"
)

const envPrefix = "S3DRIVE_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Storage    StorageConfig    `yaml:"storage"`
	Driver     DriverConfig     `yaml:"driver"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int64  `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogCompress   bool   `yaml:"log_compress"`
}

// StorageConfig locates the bucket and configures the S3 client.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`

	// Protocol of public URLs: auto, https or http.
	Protocol      string `yaml:"protocol"`
	PublicBaseURL string `yaml:"public_base_url"`

	S3 s3.Config `yaml:"s3"`

	CircuitBreaker circuit.Config `yaml:"circuit_breaker"`
}

// DriverConfig represents the driver facade settings
type DriverConfig struct {
	StorageID        string   `yaml:"storage_id"`
	ProcessingFolder string   `yaml:"processing_folder"`
	ScratchDir       string   `yaml:"scratch_dir"`
	Capabilities     []string `yaml:"capabilities"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics metrics.Config `yaml:"metrics"`
}

// NewDefault returns a configuration with default values
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:      "INFO",
			LogFormat:     "text",
			LogMaxSizeMB:  100,
			LogMaxBackups: 5,
		},
		Storage: StorageConfig{
			Protocol:       "auto",
			S3:             *s3.NewDefaultConfig(),
			CircuitBreaker: circuit.DefaultConfig(),
		},
		Driver: DriverConfig{
			StorageID:        "s3",
			ProcessingFolder: listing.DefaultProcessingFolder,
			ScratchDir:       filepath.Join(os.TempDir(), "s3drive"),
			Capabilities:     []string{"browsable", "public", "writable"},
		},
		Monitoring: MonitoringConfig{
			Metrics: *metrics.DefaultConfig(),
		},
	}
}

// LoadFromFile merges the YAML file at path over the current values.
func (c *Configuration) LoadFromFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithContext("path", path).
			WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").
			WithContext("path", path).
			WithCause(err)
	}

	return nil
}

// LoadFromEnv applies S3DRIVE_* environment variables.
func (c *Configuration) LoadFromEnv() error {
	var errs []string

	setString := func(name string, target *string) {
		if val := os.Getenv(envPrefix + name); val != "" {
			*target = val
		}
	}
	setBool := func(name string, target *bool) {
		if val := os.Getenv(envPrefix + name); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, envPrefix+name)
				return
			}
			*target = b
		}
	}
	setInt := func(name string, target *int) {
		if val := os.Getenv(envPrefix + name); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, envPrefix+name)
				return
			}
			*target = n
		}
	}

	// Global
	setString("LOG_LEVEL", &c.Global.LogLevel)
	setString("LOG_FORMAT", &c.Global.LogFormat)
	setString("LOG_FILE", &c.Global.LogFile)

	// Storage
	setString("BUCKET", &c.Storage.Bucket)
	setString("PROTOCOL", &c.Storage.Protocol)
	setString("PUBLIC_BASE_URL", &c.Storage.PublicBaseURL)
	setString("REGION", &c.Storage.S3.Region)
	setString("ENDPOINT", &c.Storage.S3.Endpoint)
	setString("ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	setString("SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)
	setString("SESSION_TOKEN", &c.Storage.S3.SessionToken)
	setString("STORAGE_TIER", &c.Storage.S3.StorageTier)
	setBool("FORCE_PATH_STYLE", &c.Storage.S3.ForcePathStyle)
	setBool("CARGOSHIP", &c.Storage.S3.EnableCargoShipOptimization)
	setInt("MAX_RETRIES", &c.Storage.S3.MaxRetries)
	setInt("POOL_SIZE", &c.Storage.S3.PoolSize)
	if val := os.Getenv(envPrefix + "REQUEST_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, envPrefix+"REQUEST_TIMEOUT")
		} else {
			c.Storage.S3.RequestTimeout = d
		}
	}

	// Driver
	setString("STORAGE_ID", &c.Driver.StorageID)
	setString("PROCESSING_FOLDER", &c.Driver.ProcessingFolder)
	setString("SCRATCH_DIR", &c.Driver.ScratchDir)
	if val := os.Getenv(envPrefix + "CAPABILITIES"); val != "" {
		c.Driver.Capabilities = splitList(val)
	}

	// Monitoring
	setBool("METRICS_ENABLED", &c.Monitoring.Metrics.Enabled)
	setString("METRICS_ADDRESS", &c.Monitoring.Metrics.Address)

	if len(errs) > 0 {
		return errors.NewError(errors.ErrCodeConfigLoad, "invalid environment variables: "+strings.Join(errs, ", ")).
			WithComponent("config")
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Configuration) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	invalid := func(msg string) *errors.DriverError {
		return errors.NewError(errors.ErrCodeConfigValidation, msg).WithComponent("config")
	}

	if c.Storage.Bucket == "" {
		return errors.NewError(errors.ErrCodeMissingConfig, "storage.bucket is required").WithComponent("config")
	}
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return invalid(fmt.Sprintf("invalid log_level: %s (must be one of: DEBUG, INFO, WARN, ERROR)", c.Global.LogLevel))
	}
	if _, err := utils.ParseLogFormat(c.Global.LogFormat); err != nil {
		return invalid("invalid log_format: " + c.Global.LogFormat)
	}
	if c.Global.LogMaxSizeMB < 0 || c.Global.LogMaxBackups < 0 {
		return invalid("log rotation limits cannot be negative")
	}

	switch strings.ToLower(c.Storage.Protocol) {
	case "", "auto", "http", "https":
	default:
		return invalid("protocol must be one of: auto, http, https")
	}
	if err := c.Storage.S3.Validate(); err != nil {
		return invalid(err.Error()).WithCause(err)
	}
	if c.Storage.CircuitBreaker.Cooldown < 0 {
		return invalid("circuit_breaker.cooldown cannot be negative")
	}

	if strings.Contains(strings.Trim(c.Driver.ProcessingFolder, "/"), "/") {
		return invalid("processing_folder must be a single folder name")
	}
	if _, err := driver.ParseCapabilities(c.Driver.Capabilities); err != nil {
		return invalid(err.Error()).WithCause(err)
	}

	if c.Monitoring.Metrics.Enabled && c.Monitoring.Metrics.Address == "" {
		return invalid("monitoring.metrics.address is required when metrics are enabled")
	}

	return nil
}

// DriverOptions derives the driver options. Validate must have succeeded.
func (c *Configuration) DriverOptions() driver.Options {
	caps, err := driver.ParseCapabilities(c.Driver.Capabilities)
	if err != nil || len(c.Driver.Capabilities) == 0 {
		caps = driver.DefaultCapabilities
	}
	return driver.Options{
		StorageID:        c.Driver.StorageID,
		Bucket:           c.Storage.Bucket,
		Protocol:         c.Storage.Protocol,
		PublicBaseURL:    c.Storage.PublicBaseURL,
		ProcessingFolder: c.Driver.ProcessingFolder,
		ScratchDir:       c.Driver.ScratchDir,
		Capabilities:     caps,
	}
}

// LoggingConfig derives the logger settings.
func (c *Configuration) LoggingConfig() utils.LoggingConfig {
	return utils.LoggingConfig{
		Level:      c.Global.LogLevel,
		Format:     c.Global.LogFormat,
		File:       c.Global.LogFile,
		MaxSizeMB:  c.Global.LogMaxSizeMB,
		MaxBackups: c.Global.LogMaxBackups,
		Compress:   c.Global.LogCompress,
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
