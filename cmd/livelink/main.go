package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/uell/livelink/internal/broadcast"
	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/internal/control"
	"github.com/uell/livelink/internal/dispatcher"
	"github.com/uell/livelink/internal/encoder"
	"github.com/uell/livelink/internal/lifecycle"
	"github.com/uell/livelink/internal/logging"
	"github.com/uell/livelink/internal/monitor"
	intOtel "github.com/uell/livelink/internal/otel"
	"github.com/uell/livelink/internal/registry"
	"github.com/uell/livelink/internal/sampler"
	"github.com/uell/livelink/internal/scene/ecsscene"
	"github.com/uell/livelink/internal/session"
	"github.com/uell/livelink/internal/storage"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostbridge"
	"github.com/uell/livelink/pkg/hostscene"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "livelink"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// ZLogger feeds the dispatcher and the database/influx managers
	ZLogger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile io.WriteCloser

	SessionStartTime time.Time = time.Now()

	// Services, read by the logging context provider
	broadcastLifecycle *lifecycle.Lifecycle
	trackedRegistry    *registry.Registry
	sessionContext     *session.Context
)

// shutdownTimeout bounds how long the broadcast loop gets to exit.
const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	demo := fs.Bool("demo", false, "seed and animate a demo scene")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configErr := config.Load(*configDir)
	if configErr != nil {
		config.LoadDefaults()
	}

	setupLogging()
	defer shutdownLogging()

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "dir", *configDir)
	}

	rest := fs.Args()
	if len(rest) > 0 {
		if err := runCommand(rest[0], rest[1:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	if err := serve(*demo); err != nil {
		Logger.Error("Exited with error", "error", err)
		return 1
	}
	return 0
}

// setupLogging wires the rotating log file, OTel, Graylog and the zerolog
// logger. Replies go to stdout, so logs never do.
func setupLogging() {
	logCfg := config.GetLogConfig()

	var file io.Writer = os.Stderr
	path := logging.LogFilePath(logCfg.Dir, AppName, SessionStartTime)
	rotating, err := logging.RotatingFile(path, logCfg.MaxSizeMB, logCfg.MaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log file %s: %v\n", path, err)
	} else {
		LogFile = rotating
		file = rotating
	}

	otelCfg := config.GetOTelConfig()
	serverCfg := config.GetServerConfig()
	var otelErr error
	if otelCfg.Enabled {
		OTelProvider, otelErr = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			Version:      Version,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    file,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
			Attributes: map[string]string{
				"livelink.port":     strconv.Itoa(serverCfg.Port),
				"livelink.encoding": serverCfg.Encoding,
			},
		})
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var graylog io.Writer
	var graylogErr error
	if logCfg.GraylogAddress != "" {
		w, err := logging.GraylogWriter(logCfg.GraylogAddress, AppName)
		if err != nil {
			graylogErr = err
		} else {
			graylog = w
		}
	}

	SlogManager.SetupWith(logging.Options{
		File:     file,
		Level:    logCfg.Level,
		Provider: otelLogProvider,
		Graylog:  graylog,
		Context:  logContext,
	})
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	ZLogger = logging.NewZerolog(file, logCfg.Level)

	Logger.Info("Begin logging", "path", path, "version", Version, "build", BuildDate)
	if otelErr != nil {
		Logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if OTelProvider != nil {
		Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	if graylogErr != nil {
		Logger.Error("Failed to connect to Graylog", "address", logCfg.GraylogAddress, "error", graylogErr)
	}
}

// logContext adds server state to every log record.
func logContext() []slog.Attr {
	var attrs []slog.Attr
	if broadcastLifecycle != nil {
		attrs = append(attrs, slog.String("server", broadcastLifecycle.State().String()))
	}
	if trackedRegistry != nil {
		attrs = append(attrs, slog.Int("tracked", trackedRegistry.Len()))
	}
	if sessionContext != nil {
		if cur, ok := sessionContext.Current(); ok {
			attrs = append(attrs, slog.Uint64("session", uint64(cur.ID)))
		}
	}
	return attrs
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	if OTelProvider != nil {
		_ = OTelProvider.Shutdown(ctx)
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// seedDemo adds a rigged mesh and a camera to scene.
func seedDemo(scene *ecsscene.Scene) error {
	if err := scene.AddMesh("Arm01"); err != nil {
		return err
	}
	if err := scene.AddArmature("Arm01Rig", "Arm01", "Hand", "Elbow"); err != nil {
		return err
	}
	return scene.AddCamera("Camera", hostscene.Transform{Rotation: core.IdentityRotation})
}

// animate drives the demo scene at interval until ctx is done.
func animate(ctx context.Context, scene *ecsscene.Scene, interval time.Duration) error {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			scene.Animate(now.Sub(start).Seconds())
			scene.Step()
		}
	}
}

// newPacer builds a fresh pacer per server start.
func newPacer(cfg config.ServerConfig, scene *ecsscene.Scene) broadcast.Pacer {
	switch cfg.Pacer {
	case "frame":
		return broadcast.NewFramePacer(scene.Frames())
	case "none":
		return nil
	default:
		return broadcast.NewRatePacer(cfg.TickInterval)
	}
}

func serve(demo bool) error {
	scene := ecsscene.New()
	if demo {
		if err := seedDemo(scene); err != nil {
			return fmt.Errorf("seeding demo scene: %w", err)
		}
		Logger.Info("Demo scene seeded", "objects", []string{"Arm01", "Arm01Rig", "Camera"})
	}

	trackedRegistry = registry.New(scene, Logger)
	sessionContext = session.NewContext()
	smp := sampler.New(scene, trackedRegistry)

	srvCfg := config.GetServerConfig()
	enc, err := encoder.New(srvCfg.Encoding)
	if err != nil {
		return err
	}

	recorder := initStorage(config.GetStorageConfig())
	if recorder != nil {
		defer func() {
			if err := recorder.Close(); err != nil {
				Logger.Error("Failed to close storage backend", "error", err)
			}
		}()
	}

	broadcastLifecycle = lifecycle.New(func() (lifecycle.Server, error) {
		srv, err := broadcast.New(broadcast.Config{
			Host:          srvCfg.Host,
			Port:          srvCfg.Port,
			AcceptTimeout: srvCfg.AcceptTimeout,
			WriteTimeout:  srvCfg.WriteTimeout,
		}, broadcast.Dependencies{
			Registry: trackedRegistry,
			Sampler:  smp,
			Encoder:  enc,
			Pacer:    newPacer(srvCfg, scene),
			Recorder: recorder,
			Session:  sessionContext,
			Logger:   Logger,
		})
		if err != nil {
			return nil, err
		}
		return srv, nil
	}, Logger)

	controlService := control.New(control.Dependencies{
		Scene:      scene,
		Registry:   trackedRegistry,
		Lifecycle:  broadcastLifecycle,
		Session:    sessionContext,
		Editor:     scene,
		SceneQueue: srvCfg.SceneQueue,
		Logger:     Logger,
	})

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer eventDispatcher.Close()
	controlService.RegisterHandlers(eventDispatcher)

	monCfg := config.GetMonitorConfig()
	if monCfg.Enabled {
		monitorService := monitor.NewService(monitor.Dependencies{
			Control:  controlService,
			Session:  sessionContext,
			Pending:  pendingWrites(recorder),
			Dir:      monCfg.Dir,
			Interval: monCfg.Interval,
			Logger:   Logger,
		})
		if err := monitorService.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		} else {
			defer monitorService.Stop()
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	bridge := hostbridge.New(eventDispatcher, Version)
	g.Go(func() error {
		// EOF on stdin ends the program
		defer cancel()
		err := bridge.Serve(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if demo {
		g.Go(func() error { return animate(gctx, scene, srvCfg.TickInterval) })
	}

	g.Go(func() error {
		<-gctx.Done()
		broadcastLifecycle.Stop()
		waitCtx, cancelWait := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelWait()
		if err := broadcastLifecycle.Wait(waitCtx); err != nil {
			return fmt.Errorf("waiting for broadcast loop: %w", err)
		}
		return nil
	})

	Logger.Info("Ready", "port", srvCfg.Port, "encoding", enc.Name(), "pacer", srvCfg.Pacer)
	err = g.Wait()
	Logger.Info("Shutting down")
	return err
}

// initStorage builds and initializes the configured recorder. Failures are
// logged and broadcasting continues without recording.
func initStorage(storageCfg config.StorageConfig) storage.Backend {
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil
	}
	if backend == nil {
		Logger.Info("Session recording disabled")
		return nil
	}

	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return nil
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend
}
