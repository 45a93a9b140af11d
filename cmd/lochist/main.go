package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"lochist/internal/config"
	"lochist/internal/export"
	"lochist/internal/kml"
	appLog "lochist/internal/log"
	"lochist/internal/render"
	"lochist/internal/stats"
	"lochist/internal/table"
	"lochist/internal/web"
)

// flagConfig holds CLI flag values. Non-empty values override the config file.
type flagConfig struct {
	configPath string
	envPath    string
	dir        string
	tz         string
	strict     bool
	logLevel   string

	fetch bool
	begin string
	end   string
	from  string
	to    string
	year  int

	address  string
	name     string
	category string
	daily    bool

	ics    string
	sqlite string

	serve   bool
	listen  string
	capture bool
	watch   bool
}

func main() {
	flags := parseFlags()

	if err := godotenv.Load(flags.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to read env file", "path", flags.envPath, "err", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyOverrides(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"data_dir", conf.DataDir,
		"timezone", conf.Timezone,
		"strict", conf.Strict,
		"listen", conf.Listen,
		"refresh", conf.Refresh,
		"cookie_set", conf.Fetch.Cookie != "",
	)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags, loc); err != nil {
		appLog.Error("lochist failed", err)
		os.Exit(1)
	}
	appLog.Info("lochist exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, loc *time.Location) error {
	if flags.fetch {
		if err := fetch(ctx, conf, flags); err != nil {
			return err
		}
	}

	opts := kml.LoadOptions{Location: loc, Strict: conf.Strict}
	events, _, err := kml.LoadDir(conf.DataDir, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", conf.DataDir, err)
	}

	if err := report(events, flags); err != nil {
		return err
	}
	if err := exportTable(ctx, conf, events, loc); err != nil {
		return err
	}

	if !flags.serve && !flags.watch {
		if flags.capture {
			return captureOnce(ctx, conf, events)
		}
		return nil
	}

	srv := web.NewServer(conf, events)

	if flags.watch {
		c := cron.New()
		_, err := c.AddFunc(conf.Refresh, func() {
			refresh(ctx, conf, opts, srv)
		})
		if err != nil {
			return fmt.Errorf("refresh schedule %q: %w", conf.Refresh, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		appLog.Info("scheduled refresh enabled", "schedule", conf.Refresh)
	}

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	if flags.capture {
		go func() {
			if err := capture(ctx, conf, "http://"+ln.Addr().String()+"/map"); err != nil {
				appLog.Error("map capture failed", err)
			}
		}()
	}
	return srv.Serve(ctx, ln)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./lochist.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to .env file (LOCHIST_COOKIE)")
	flag.StringVar(&cfg.dir, "dir", "", "Directory of daily KML exports (overrides config)")
	flag.StringVar(&cfg.tz, "tz", "", "IANA timezone events are shown in (overrides config)")
	flag.BoolVar(&cfg.strict, "strict", false, "Abort on the first malformed record")
	flag.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	flag.BoolVar(&cfg.fetch, "fetch", false, "Download daily KML exports before loading")
	flag.StringVar(&cfg.begin, "begin", "", "First day to fetch, YYYY-MM-DD")
	flag.StringVar(&cfg.end, "end", "", "Last day to fetch, YYYY-MM-DD")
	flag.StringVar(&cfg.from, "from", "", "First month to fetch (name or abbreviation)")
	flag.StringVar(&cfg.to, "to", "", "Last month to fetch (name or abbreviation)")
	flag.IntVar(&cfg.year, "year", time.Now().Year(), "Year used with -from/-to")

	flag.StringVar(&cfg.address, "address", "", "Report time spent at this address")
	flag.StringVar(&cfg.name, "name", "", "Report time spent at this place name")
	flag.StringVar(&cfg.category, "category", "", "Report statistics for this activity")
	flag.BoolVar(&cfg.daily, "daily", false, "With -category, print the per-day breakdown")

	flag.StringVar(&cfg.ics, "ics", "", "Write the table as an iCalendar file (overrides config)")
	flag.StringVar(&cfg.sqlite, "sqlite", "", "Write the table to a SQLite file (overrides config)")

	flag.BoolVar(&cfg.serve, "serve", false, "Serve the table, statistics and map over HTTP")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.capture, "capture", false, "Screenshot the map page to capture.output")
	flag.BoolVar(&cfg.watch, "watch", false, "Serve and re-fetch yesterday on the refresh schedule")

	flag.Parse()

	return cfg
}

func applyOverrides(conf *config.Config, flags flagConfig) {
	if flags.dir != "" {
		conf.DataDir = flags.dir
	}
	if flags.tz != "" {
		conf.Timezone = flags.tz
	}
	if flags.strict {
		conf.Strict = true
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if flags.begin != "" {
		conf.Fetch.Begin = flags.begin
	}
	if flags.end != "" {
		conf.Fetch.End = flags.end
	}
	if flags.ics != "" {
		conf.Export.ICSPath = flags.ics
	}
	if flags.sqlite != "" {
		conf.Export.SQLitePath = flags.sqlite
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if cookie := os.Getenv("LOCHIST_COOKIE"); cookie != "" {
		conf.Fetch.Cookie = cookie
	}
}

func newFetcher(conf *config.Config) *kml.Fetcher {
	return kml.NewFetcher(kml.FetchConfig{
		BaseURL:   conf.Fetch.BaseURL,
		Cookie:    conf.Fetch.Cookie,
		Dir:       conf.DataDir,
		Overwrite: conf.Fetch.Overwrite,
		MaxJitter: time.Duration(conf.Fetch.MaxJitterMs) * time.Millisecond,
		Retries:   conf.Fetch.Retries,
	})
}

func fetch(ctx context.Context, conf *config.Config, flags flagConfig) error {
	var begin, end time.Time
	if flags.from != "" || flags.to != "" {
		to := flags.to
		if to == "" {
			to = flags.from
		}
		b, e, err := kml.MonthRange(flags.from, to, flags.year)
		if err != nil {
			return err
		}
		begin, end = b, e
	} else {
		b, e, ok, err := conf.FetchRange()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("fetch needs -begin/-end, -from/-to or fetch.begin/fetch.end in config")
		}
		begin, end = b, e
	}

	if conf.Fetch.Cookie == "" {
		appLog.Warn("no cookie configured, requests will likely be refused")
	}

	written, errs := newFetcher(conf).FetchRange(ctx, begin, end)
	appLog.Info("fetch completed",
		"begin", begin.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"written", len(written),
		"errors", len(errs),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func report(events table.Table, flags flagConfig) error {
	r := stats.NewReporter(os.Stdout)

	if flags.address != "" || flags.name != "" {
		p, err := stats.Place(events, stats.Selector{Address: flags.address, Name: flags.name})
		if err != nil {
			return err
		}
		r.Place(p)
	}

	if flags.category != "" {
		a, err := stats.Activity(events, flags.category)
		if err != nil {
			return err
		}
		r.Activity(a)

		if flags.daily && !a.Empty {
			d, err := stats.Daily(a.Events)
			if err != nil {
				return err
			}
			r.Daily(d)
		}
	}
	return nil
}

func exportTable(ctx context.Context, conf *config.Config, events table.Table, loc *time.Location) error {
	if path := conf.Export.ICSPath; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("ics export: %w", err)
		}
		if err := export.WriteICS(f, events, export.ICSOptions{Location: loc}); err != nil {
			f.Close()
			return fmt.Errorf("ics export: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("ics export: %w", err)
		}
		appLog.Info("ics written", "path", path, "events", len(events))
	}

	if path := conf.Export.SQLitePath; path != "" {
		if err := export.SaveSQLite(ctx, path, events); err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
		appLog.Info("sqlite written", "path", path, "events", len(events))
	}
	return nil
}

// refresh fetches yesterday's export and swaps the rebuilt table into srv.
func refresh(ctx context.Context, conf *config.Config, opts kml.LoadOptions, srv *web.Server) {
	yesterday := time.Now().In(opts.Location).AddDate(0, 0, -1)
	day := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)

	if _, _, err := newFetcher(conf).FetchDay(ctx, day); err != nil {
		appLog.Error("scheduled fetch failed", err, "day", day.Format("2006-01-02"))
		return
	}

	events, _, err := kml.LoadDir(conf.DataDir, opts)
	if err != nil {
		appLog.Error("scheduled reload failed", err, "dir", conf.DataDir)
		return
	}
	srv.SetTable(events)
	appLog.Info("table refreshed", "rows", len(events))
}

// captureOnce serves the map on an ephemeral port just long enough to
// screenshot it.
func captureOnce(ctx context.Context, conf *config.Config, events table.Table) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	srvCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- web.NewServer(conf, events).Serve(srvCtx, ln) }()

	capErr := capture(ctx, conf, "http://"+ln.Addr().String()+"/map")
	stop()
	if err := <-done; err != nil {
		appLog.Warn("capture server shutdown", "err", err)
	}
	return capErr
}

func capture(ctx context.Context, conf *config.Config, url string) error {
	opts := render.CaptureOptions{
		URL:        url,
		OutputPath: conf.Capture.Output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		return errors.New("capture is not supported with basic_auth enabled")
	}
	if err := render.CapturePNG(ctx, opts); err != nil {
		return err
	}
	appLog.Info("map captured", "path", opts.OutputPath)
	return nil
}
