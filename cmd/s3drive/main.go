// s3drive is an operator tool for browsing and reorganizing an S3 bucket as
// a folder tree. It drives the same driver facade a host application
// embeds, so every command goes through the identifier rules, caches and
// staged structural mutations of the library.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/objectfs/s3drive/internal/circuit"
	"github.com/objectfs/s3drive/internal/config"
	"github.com/objectfs/s3drive/internal/driver"
	"github.com/objectfs/s3drive/internal/metrics"
	"github.com/objectfs/s3drive/internal/storage/memory"
	"github.com/objectfs/s3drive/internal/storage/s3"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
	"github.com/objectfs/s3drive/pkg/utils"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.IsCode(err, errors.ErrCodeValidationFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	bucket     string
	backend    string
	logLevel   string
	stats      bool
	serve      bool
	help       bool

	cmd commandFlags
}

func run(argv []string, stdout, stderr io.Writer) error {
	var flags globalFlags

	flagSet := pflag.NewFlagSet("s3drive", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&flags.configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVar(&flags.bucket, "bucket", "", "bucket name (overrides configuration)")
	flagSet.StringVar(&flags.backend, "backend", "s3", "object store: s3 or memory")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "log level (overrides configuration)")
	flagSet.BoolVar(&flags.stats, "stats", false, "print backend and cache statistics after the command")
	flagSet.BoolVar(&flags.serve, "serve-metrics", false, "expose prometheus metrics while the command runs")
	flagSet.BoolVarP(&flags.help, "help", "h", false, "show help")
	flags.cmd.register(flagSet)

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return validation("%v", err)
	}
	if flags.help || flagSet.NArg() == 0 {
		printHelp(stderr, flagSet)
		return nil
	}

	cfg, err := loadConfig(&flags)
	if err != nil {
		return err
	}

	logger, closer, err := utils.SetupLogging(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.NewCollector(&cfg.Monitoring.Metrics)
	if err != nil {
		return err
	}
	if flags.serve {
		if err := collector.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = collector.Stop(context.Background()) }()
	}

	backend, err := openBackend(ctx, flags.backend, cfg)
	if err != nil {
		return err
	}

	var breaker *circuit.CircuitBreaker
	if cfg.Storage.CircuitBreaker.Enabled {
		breakerConfig := cfg.Storage.CircuitBreaker
		breakerConfig.OnStateChange = func(name string, from, to circuit.State) {
			logger.Warn("circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		}
		breaker = circuit.NewCircuitBreaker(flags.backend, breakerConfig)
	}

	d := driver.New(metrics.Instrument(circuit.Guard(backend, breaker), collector), cfg.DriverOptions(),
		driver.WithLogger(logger),
		driver.WithFs(afero.NewOsFs()),
		driver.WithMetrics(collector))
	if err := d.Initialize(ctx); err != nil {
		return err
	}

	a := &app{driver: d, fs: afero.NewOsFs(), out: stdout, flags: flags.cmd}
	cmdErr := a.dispatch(ctx, flagSet.Args())

	if flags.stats {
		printStats(stderr, collector, d, backend, breaker)
	}
	return cmdErr
}

func loadConfig(flags *globalFlags) (*config.Configuration, error) {
	cfg := config.NewDefault()
	// The one-shot tool only serves metrics on request.
	cfg.Monitoring.Metrics.Enabled = flags.serve || flags.stats

	if flags.configPath != "" {
		if err := cfg.LoadFromFile(flags.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if flags.bucket != "" {
		cfg.Storage.Bucket = flags.bucket
	}
	if flags.logLevel != "" {
		cfg.Global.LogLevel = flags.logLevel
	}
	if flags.backend == "memory" && cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openBackend(ctx context.Context, kind string, cfg *config.Configuration) (types.Backend, error) {
	switch kind {
	case "s3":
		return s3.NewBackend(ctx, cfg.Storage.Bucket, &cfg.Storage.S3)
	case "memory":
		return memory.New(), nil
	default:
		return nil, validation("unknown backend %q (want s3 or memory)", kind)
	}
}

func printStats(w io.Writer, collector *metrics.Collector, d *driver.Driver, backend types.Backend, breaker *circuit.CircuitBreaker) {
	stats := map[string]interface{}{
		"caches":  d.CacheStats(),
		"backend": collector.GetMetrics()["operations"],
	}
	if breaker != nil {
		stats["circuit"] = map[string]interface{}{
			"state":  breaker.State().String(),
			"counts": breaker.Counts(),
		}
	}
	if s3Backend, ok := backend.(*s3.Backend); ok {
		stats["s3"] = s3Backend.GetMetrics()
		stats["pool"] = s3Backend.PoolStats()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		slog.Warn("failed to print statistics", "error", err)
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `s3drive - browse and reorganize an S3 bucket as a folder tree.

Usage:
  s3drive [flags] <command> [arguments]

Commands:
  ls [folder]                        list folders and files
  tree [folder]                      list a folder recursively
  mkdir <name> [parent]              create a folder (-p for nested names)
  put <local-file> [folder]          upload a local file
  cat <file>                         print the content of a file
  get <file> [local-path]            download a file (scratch copy without a path)
  mv <source> <folder> [new-name]    move a file or folder
  cp <source> <folder> [new-name]    copy a file or folder
  rename <source> <new-name>         rename a file or folder in place
  rm <file-or-folder>                delete (-r for non-empty folders)
  info <file-or-folder>              show metadata
  perms <file-or-folder>             show read and write permissions

Folder identifiers end with "/"; the root folder is "/".

Examples:
  s3drive --bucket media ls /
  s3drive --bucket media mkdir -p reports/2024
  s3drive --bucket media mv docs/ archive/
  s3drive --backend memory --stats mkdir scratch

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
