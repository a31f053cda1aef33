package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/internal/dispatcher"
	"github.com/OCAP2/skelscale/internal/influx"
	"github.com/OCAP2/skelscale/internal/logging"
	"github.com/OCAP2/skelscale/internal/monitor"
	"github.com/OCAP2/skelscale/internal/session"
	"github.com/OCAP2/skelscale/internal/storage"
	"github.com/OCAP2/skelscale/internal/worker"
	"github.com/OCAP2/skelscale/pkg/core"

	"github.com/spf13/viper"
)

func runScale(args []string) error {
	fs := newFlagSet("scale")
	scales := fs.StringArray("scale", nil, "override one factor as Bone=value (repeatable)")
	parallel := fs.Bool("parallel", false, "scale the whole clip as one parallel batch")
	fs.Int("workers", 0, "batch workers, 0 for one per CPU")
	fs.String("storage", "", "storage backend: memory, sqlite or postgres")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("scale: expected one clip path")
	}

	done, err := setup(fs, map[string]string{
		"scaling.workers": "workers",
		"storage.type":    "storage",
	})
	if err != nil {
		return err
	}
	defer done()

	in, err := loadInput(fs.Arg(0), *scales)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	storageCfg := config.GetStorageConfig()
	dumpPath := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		LogManager: SlogManager,
		Logger:     ZLogger,
		DumpPath:   dumpPath,
	})
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	record := &core.Session{
		ClipName:    in.clip.Name,
		FPS:         in.clip.FPS,
		HumanHeight: in.clip.HumanHeight,
		Root:        in.hierarchy.Root(),
		StartTime:   SessionStartTime,
		Bones:       in.hierarchy.Defs(),
		Scales:      in.table.Entries(),
	}
	if err := backend.StartSession(record); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	LogContext.Set(record.ClipName, record.ID)
	defer LogContext.Clear()

	metrics := connectInflux()
	if metrics != nil {
		defer metrics.Close()
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	wm, err := worker.NewManager(worker.Dependencies{
		Session:    session.New(in.hierarchy, in.table),
		Backend:    backend,
		Record:     record,
		Influx:     metrics,
		LogManager: SlogManager,
	})
	if err != nil {
		return err
	}
	wm.RegisterHandlers(d)

	if mc := config.GetMonitorConfig(); mc.Enabled {
		statusPath := mc.StatusFile
		if statusPath != "" && !filepath.IsAbs(statusPath) {
			statusPath = filepath.Join(viper.GetString("logsDir"), statusPath)
		}
		mon := monitor.NewService(monitor.Dependencies{
			LogManager: SlogManager,
			Progress:   wm,
			Record:     record,
			Backend:    backend,
			Influx:     metrics,
			StatusPath: statusPath,
			Interval:   mc.Interval,
		})
		mon.Start()
		defer mon.Stop()
	}

	start := time.Now()
	var n int
	if *parallel {
		n, err = wm.ScaleClip(ctx, in.clip, viper.GetInt("scaling.workers"))
	} else {
		n, err = scaleFrames(ctx, d, in.clip, record)
	}
	if werr := wm.Wait(); werr != nil {
		Logger.Error("Failed to record frames", "error", werr)
		err = errors.Join(err, werr)
	}
	if err != nil {
		return err
	}

	if err := backend.EndSession(); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	Logger.Info("Scaled clip", "clip", in.clip.Name, "frames", n, "duration", time.Since(start))

	if e, ok := backend.(storage.Exportable); ok && e.GetExportedFilePath() != "" {
		fmt.Fprintln(osStdout, e.GetExportedFilePath())
	}
	return nil
}

// scaleFrames streams the clip through the :FRAME: handler one frame at a
// time, as a live capture source would.
func scaleFrames(ctx context.Context, d *dispatcher.Dispatcher, clip *core.Clip, record *core.Session) (int, error) {
	for i, frame := range clip.Frames {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		ts := record.StartTime.Add(time.Duration(float64(i) / clip.FPS * float64(time.Second)))
		if _, err := d.Dispatch(dispatcher.Event{
			Command:   worker.CmdFrame,
			Payload:   frame,
			Timestamp: ts,
		}); err != nil {
			return i, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return len(clip.Frames), nil
}

// connectInflux returns nil when influx is disabled or unusable.
func connectInflux() *influx.Manager {
	if !viper.GetBool("influx.enabled") {
		return nil
	}
	backup := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.log.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(ZLogger, backup)
	if err := m.Connect(); err != nil {
		Logger.Warn("InfluxDB unavailable, segment metrics disabled", "error", err)
		return nil
	}
	return m
}
