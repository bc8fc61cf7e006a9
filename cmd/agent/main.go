package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/mycoool/imonitor/internal/pidfile"
	"github.com/mycoool/imonitor/internal/sampler"
)

func main() {
	var (
		flagToken    = flag.String("token", "", "Node token issued by the registry")
		flagEndpoint = flag.String("endpoint", "", "Registry base URL, e.g. http://10.0.0.10:8080")
		flagInterval = flag.String("interval", "", "Report interval in seconds or as a duration (default 5s, minimum 1s)")
		flagFlag     = flag.String("flag", "", "Display flag sent with every report")

		flagDataDir = flag.String("data-dir", defaultDataDir(), "Persistent directory for agent state")
		flagEnvFile = flag.String("env-file", "", "Load env vars from a .env file (optional)")
		verbose     = flag.Bool("verbose", true, "show verbose output")
		logPath     = flag.String("logfile", "", "send log output to a file")
		pidPath     = flag.String("pidfile", "", "create PID file at the given path")
	)
	flag.Parse()

	log.SetPrefix("[iMonitor] ")
	log.SetFlags(log.Ldate | log.Ltime)
	if *logPath != "" {
		file, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("agent: error opening log file %q: %v", *logPath, err)
		}
		defer file.Close()
		log.SetOutput(file)
	} else if !*verbose {
		log.SetOutput(io.Discard)
	}

	if err := loadDotEnvFiles(*flagEnvFile, *flagDataDir); err != nil {
		log.Printf("agent: failed to load .env: %v", err)
	}

	statePath := sampler.StatePath(*flagDataDir)
	saved, err := sampler.LoadSettings(statePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("agent: ignoring unreadable state %s: %v", statePath, err)
	}

	cfg, err := resolveConfig(flagValues{
		Token:    *flagToken,
		Endpoint: *flagEndpoint,
		Interval: *flagInterval,
		Flag:     *flagFlag,
	}, os.Getenv, saved)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("agent: %v", err)
	}
	if err := sampler.SaveSettings(statePath, settingsFromConfig(cfg)); err != nil {
		log.Printf("agent: failed to persist state: %v", err)
	}

	if *pidPath != "" {
		pidFile, err := pidfile.New(*pidPath)
		if err != nil {
			log.Fatalf("agent: error creating pidfile: %v", err)
		}
		defer func() {
			if nerr := pidFile.Remove(); nerr != nil {
				log.Print(nerr)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	info := sampler.DetectHostInfo(ctx, cfg.Flag)
	agent := sampler.New(cfg, sampler.HostSource{}, info)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("agent: systemd notify failed: %v", err)
	}
	log.Printf("agent: reporting %s as %s every %s to %s", info.Hostname, info.IPAddress, cfg.Interval, cfg.Endpoint)
	agent.Run(ctx)
	log.Printf("agent: stopped")
}
