package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/internal/logging"
	intOtel "github.com/OCAP2/skelscale/internal/otel"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "skelscale"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// LogContext tags log records with the clip and session being recorded
	LogContext *logging.SessionContext = logging.NewSessionContext(CurrentVersion)

	// ZLogger is handed to the database, influx and dispatcher layers
	ZLogger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()

	// osStdout receives command output; tests swap it for a buffer
	osStdout io.Writer = os.Stdout
)

const usage = `usage: skelscale <command> [flags]

commands:
  scale <clip>     scale a clip and record it to the configured storage
  probe <clip>     report which joints move when one bone's scale changes
  project <clip>   write front, side and top projections of one frame
  stats <clip>     per-bone segment length statistics
  robots           list supported robot targets
  version          print version

run "skelscale <command> --help" for command flags`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "scale":
		err = runScale(args[1:])
	case "probe":
		err = runProbe(args[1:])
	case "project":
		err = runProject(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "robots":
		err = runRobots(args[1:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", args[0], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the flags every command shares.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "override logLevel")
	fs.String("logs-dir", "", "override logsDir")
	return fs
}

// setup loads the config, binds flag overrides and starts logging.
// The returned func flushes and closes every log sink.
func setup(fs *pflag.FlagSet, keys map[string]string) (func(), error) {
	dir, _ := fs.GetString("config")
	configErr := config.Load(dir)

	bound := map[string]string{
		"logLevel": "log-level",
		"logsDir":  "logs-dir",
	}
	for k, v := range keys {
		bound[k] = v
	}
	if err := config.BindFlags(fs, bound); err != nil {
		return nil, err
	}

	if err := initLogging(); err != nil {
		return nil, err
	}
	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "path", viper.ConfigFileUsed())
	}

	return shutdown, nil
}

func initLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)

	// check if LogFilePath exists
	// if it does, move it to LogFilePath.old
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file: %w", err)
	}

	level := viper.GetString("logLevel")
	ZLogger = logging.NewZerolog(LogFile, level)

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	var otelLogProvider *sdklog.LoggerProvider
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, LogFile))
		if err != nil {
			ZLogger.Error().Err(err).Msg("Failed to initialize OTel provider")
		} else {
			otelLogProvider = OTelProvider.LoggerProvider()
		}
	}

	var graylog io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			ZLogger.Error().Err(err).Str("address", gl.Address).Msg("Failed to connect to Graylog")
		} else {
			graylog = w
		}
	}

	SlogManager.SetupWith(logging.Options{
		File:     LogFile,
		Level:    level,
		Provider: otelLogProvider,
		Graylog:  graylog,
		Context:  LogContext.Attrs,
	})
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "failed to close logging:", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to shut down OTel:", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}
