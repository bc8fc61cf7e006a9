package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/auth"
	"github.com/mycoool/imonitor/internal/config"
	"github.com/mycoool/imonitor/internal/database"
	"github.com/mycoool/imonitor/internal/otel"
	"github.com/mycoool/imonitor/internal/pidfile"
	"github.com/mycoool/imonitor/internal/registry"
	"github.com/mycoool/imonitor/internal/router"
	"github.com/mycoool/imonitor/internal/stream"
)

// Version is overridden at build time with -ldflags "-X main.Version=..."
var Version = "dev"

var (
	configPath         = flag.String("config", config.DefaultPath, "path to the registry config file, created with defaults when missing")
	bind               = flag.String("bind", "", "listen address, overrides the config file (e.g. [::]:8080)")
	verbose            = flag.Bool("verbose", false, "show verbose output")
	logPath            = flag.String("logfile", "", "send log output to a file; implicitly enables verbose logging")
	ginDebug           = flag.Bool("gin-debug", false, "show gin debug output")
	hotReload          = flag.Bool("hotreload", false, "watch the config file for changes and reload it automatically")
	quiet              = flag.Bool("quiet", false, "do not write access log lines for agent reports")
	pidPath            = flag.String("pidfile", "", "create PID file at the given path")
	justDisplayVersion = flag.Bool("version", false, "display imonitor version and quit")
)

// app is the wired registry process
type app struct {
	holder   *config.Holder
	events   *database.EventService
	registry *registry.Service
	metrics  *otel.Recorder
	engine   *gin.Engine
}

func main() {
	flag.Parse()

	if *justDisplayVersion {
		fmt.Println("imonitor version " + Version)
		os.Exit(0)
	}

	if *logPath != "" {
		*verbose = true
	}

	// set gin mode before any engine is built
	if *ginDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if *logPath != "" {
		file, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("error opening log file %q: %v", *logPath, err)
		}
		defer file.Close()
		log.SetOutput(file)
		gin.DefaultWriter = file
	}

	log.SetPrefix("[iMonitor] ")
	log.SetFlags(log.Ldate | log.Ltime)

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if *pidPath != "" {
		pidFile, err := pidfile.New(*pidPath)
		if err != nil {
			log.Fatalf("Error creating pidfile: %v", err)
		}
		defer func() {
			if nerr := pidFile.Remove(); nerr != nil {
				log.Print(nerr)
			}
		}()
	}

	log.Println("version " + Version + " starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("couldn't load config from %s: %v", *configPath, err)
	}
	if *bind != "" {
		cfg.Bind = *bind
	}
	holder := config.NewHolder(*configPath, cfg)

	a, err := newApp(ctx, holder, *quiet)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("startup failed: %v", err)
	}
	defer a.close()

	if *hotReload {
		if err := config.Watch(ctx, holder); err != nil {
			log.Printf("error creating config file watcher: %v", err)
		}
	}

	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("error listening on %s: %v", cfg.Bind, err)
	}

	if err := a.serve(ctx, ln); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

// newApp opens storage and wires every component behind the HTTP router
func newApp(ctx context.Context, holder *config.Holder, quietReports bool) (*app, error) {
	cfg := holder.Current()

	if err := database.InitDatabase(&database.DatabaseConfig{
		Driver:   cfg.Database.Driver,
		Database: cfg.Database.Database,
	}); err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(); err != nil {
		_ = database.CloseDB()
		return nil, err
	}
	db := database.GetDB()

	metrics, err := otel.New(ctx, cfg.Metrics, Version)
	if err != nil {
		_ = database.CloseDB()
		return nil, err
	}

	svc := registry.NewService(db, holder, registry.WithRecorder(metrics))
	if err := metrics.ObserveNodes(svc.CountByStatus); err != nil {
		log.Printf("failed to register node gauge: %v", err)
	}

	events := database.NewEventService(db)
	database.ScheduleEventCleanup(ctx, events, cfg.Database.EventRetentionDays)

	engine := router.InitRouter(router.Deps{
		Config:   holder,
		Auth:     auth.New(holder),
		Registry: svc,
		Events:   events,
		Stream:   stream.NewStreamManager(),
		Quiet:    quietReports,
	})

	if !cfg.AuthEnabled() {
		log.Printf("admin credentials not configured; management API is open")
	}

	return &app{
		holder:   holder,
		events:   events,
		registry: svc,
		metrics:  metrics,
		engine:   engine,
	}, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then drains it
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	svr := &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svr.Serve(ln)
	}()

	log.Printf("serving registry on http://%s (public url %s)", ln.Addr(), a.holder.Current().PublicURL)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("systemd notify failed: %v", err)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svr.Shutdown(shutdownCtx)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		log.Printf("metrics shutdown: %v", err)
	}
	if err := database.CloseDB(); err != nil {
		log.Printf("database close: %v", err)
	}
}
