// Command h1mon polls HackerOne's Hacktivity feed for newly disclosed
// reports and forwards them to a Discord webhook.
//
// Usage:
//
//	h1mon -config ./config.yaml          # poll continuously
//	h1mon -config ./config.yaml -once    # single cycle, then exit
//
// The webhook URL is taken from the config file or DISCORD_WEBHOOK_URL
// (env wins). Missing configuration is the only fatal error; everything
// after startup is logged and retried on the next cycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"h1mon/internal/config"
	"h1mon/internal/cursor"
	"h1mon/internal/feed"
	"h1mon/internal/monitor"
	"h1mon/internal/notify"
	logx "h1mon/pkg/logx"
)

func main() { os.Exit(run()) }

func run() int {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.BoolVar(&once, "once", false, "run a single cycle and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			boot.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
			return 1
		}
		// No config file is fine as long as the environment supplies the secret.
		cfg = &config.Config{}
		cfg.ApplyEnv()
		mgr.Commit(cfg)
	}
	if err := cfg.Validate(); err != nil {
		boot.Error("invalid config", logx.Err(err))
		return 1
	}

	sched, err := monitor.ParseSchedule(scheduleOf(cfg))
	if err != nil {
		boot.Error("invalid config", logx.Err(err))
		return 1
	}

	logSvc, log := logx.New(logConfig(cfg))
	defer logSvc.Close()

	mon, store, err := build(cfg, sched, log)
	if err != nil {
		log.Error("startup failed", logx.Err(err))
		return 1
	}
	defer store.Close()

	if once {
		// Cycle errors are recoverable by design; they are logged inside the
		// cycle and do not fail the run. Only configuration is fatal.
		_ = mon.RunCycle(ctx)
		log.Info("run complete")
		return 0
	}

	return runDaemon(ctx, cancel, mgr, mon, logSvc, log)
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, mgr *config.Manager, mon *monitor.Monitor, logSvc *logx.Service, log logx.Logger) int {
	mgr.SetLogger(log)
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		_, err := monitor.ParseSchedule(scheduleOf(c))
		return err
	})

	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mgr.Watch(ctx)
	}()

	// Apply config edits live: log level/sinks and the poll schedule.
	// Component wiring (webhook URL, cursor driver) stays fixed for the
	// lifetime of the process; change those with a restart.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-updates:
				if !ok || c == nil {
					return
				}
				logSvc.Apply(logConfig(c))
				if s, err := monitor.ParseSchedule(scheduleOf(c)); err == nil {
					mon.SetSchedule(s)
				}
			}
		}
	}()

	startWatchdog(ctx, &wg)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	mon.Run(ctx)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	wg.Wait()
	return 0
}

// startWatchdog pings the systemd watchdog when one is armed for this unit.
// Outside systemd this is a no-op.
func startWatchdog(ctx context.Context, wg *sync.WaitGroup) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func build(cfg *config.Config, sched monitor.Schedule, log logx.Logger) (*monitor.Monitor, cursor.Store, error) {
	feedTimeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, config.DefaultTimeout)
	if err != nil {
		return nil, nil, err
	}
	discordTimeout, err := config.ParseDurationOrDefault("discord.timeout", cfg.Discord.Timeout, config.DefaultTimeout)
	if err != nil {
		return nil, nil, err
	}
	busyTimeout, err := config.ParseDurationField("cursor.busy_timeout", cfg.Cursor.BusyTimeout)
	if err != nil {
		return nil, nil, err
	}

	cursorPath := strings.TrimSpace(cfg.Cursor.Path)
	if cursorPath == "" {
		cursorPath = config.DefaultCursor
	}
	store, err := cursor.Open(cursor.Config{
		Driver:      cfg.Cursor.Driver,
		Path:        cursorPath,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	client := feed.New(feed.Config{
		Endpoint: cfg.Feed.Endpoint,
		PageSize: cfg.Feed.PageSize,
		Timeout:  feedTimeout,
	}, log)

	notifier := notify.NewDiscord(notify.Config{
		WebhookURL: cfg.Discord.WebhookURL,
		Timeout:    discordTimeout,
		RatePerSec: cfg.Discord.RatePerSec,
	}, log)

	return monitor.New(client, store, notifier, sched, log), store, nil
}

func scheduleOf(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Monitor.Schedule); s != "" {
		return s
	}
	return config.DefaultSchedule
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
