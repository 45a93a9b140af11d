package kml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teambition/rrule-go"

	appLog "lochist/internal/log"
)

// DefaultBaseURL hosts the timeline KML endpoint.
const DefaultBaseURL = "https://www.google.com"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	// BaseURL is scheme://host of the timeline service.
	BaseURL string
	// Cookie is sent verbatim as the Cookie header. It is never logged.
	Cookie string
	// Dir receives one history-YYYY-MM-DD.kml file per day.
	Dir string
	// Overwrite re-downloads days whose file already exists.
	Overwrite bool
	// MaxJitter bounds the random pause taken before each request.
	MaxJitter time.Duration
	// Retries is the number of retries on transport errors.
	Retries int
	// Timeout bounds each request; zero means 30s.
	Timeout time.Duration
}

// Fetcher downloads daily timeline exports.
type Fetcher struct {
	cfg    FetchConfig
	client *resty.Client
}

// NewFetcher creates a Fetcher. An empty BaseURL falls back to
// DefaultBaseURL and an empty Dir to "./history".
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dir == "" {
		cfg.Dir = "./history"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(2 * time.Second)

	return &Fetcher{cfg: cfg, client: client}
}

// FileName is the on-disk name of the export for day.
func FileName(day time.Time) string {
	return fmt.Sprintf("history-%s.kml", day.Format("2006-01-02"))
}

// DayPath is the timeline request path for one day. Months are zero-based
// in the pb parameter; begin and end are the same day.
func DayPath(day time.Time) string {
	y, m, d := day.Year(), int(day.Month())-1, day.Day()
	return fmt.Sprintf("/maps/timeline/kml?authuser=0&pb=!1m8!1m3!1i%d!2i%d!3i%d!2m3!1i%d!2i%d!3i%d", y, m, d, y, m, d)
}

// Days lists every calendar day from begin to end inclusive.
func Days(begin, end time.Time) ([]time.Time, error) {
	begin = time.Date(begin.Year(), begin.Month(), begin.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(begin) {
		return nil, errors.New("fetch: end is before begin")
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: begin,
		Until:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: day rule: %w", err)
	}
	return rule.All(), nil
}

// MonthRange resolves month names or abbreviations ("jan", "March") into
// the first day of from and the last day of to within year.
func MonthRange(from, to string, year int) (time.Time, time.Time, error) {
	fm, err := parseMonth(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	tm, err := parseMonth(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if tm < fm {
		return time.Time{}, time.Time{}, fmt.Errorf("month range %s..%s is reversed", from, to)
	}

	begin := time.Date(year, fm, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, tm+1, 0, 0, 0, 0, 0, time.UTC)
	return begin, end, nil
}

func parseMonth(s string) (time.Month, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for m := time.January; m <= time.December; m++ {
			if strings.HasPrefix(strings.ToLower(m.String()), s[:3]) {
				return m, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// FetchRange fetches every day from begin to end. Paths of written files
// are returned; per-day failures are logged and collected in errs.
func (f *Fetcher) FetchRange(ctx context.Context, begin, end time.Time) ([]string, []error) {
	days, err := Days(begin, end)
	if err != nil {
		return nil, []error{err}
	}
	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return nil, []error{err}
	}

	paths := make([]string, 0, len(days))
	errs := make([]error, 0)
	for _, day := range days {
		path, ok, err := f.FetchDay(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			appLog.Error("kml fetch failed", err, "day", day.Format("2006-01-02"))
			errs = append(errs, err)
			continue
		}
		if ok {
			paths = append(paths, path)
		}
	}

	appLog.Info("kml fetch completed", "days", len(days), "written", len(paths), "errors", len(errs))
	return paths, errs
}

// FetchDay downloads one day. ok is false when the day was skipped: an
// existing file without Overwrite, or a non-200 response.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time) (string, bool, error) {
	path := filepath.Join(f.cfg.Dir, FileName(day))
	if !f.cfg.Overwrite {
		if _, err := os.Stat(path); err == nil {
			appLog.Debug("kml fetch skipped; file exists", "path", path)
			return path, false, nil
		}
	}

	if err := f.pause(ctx); err != nil {
		return "", false, err
	}

	req := f.client.R().SetContext(ctx)
	if f.cfg.Cookie != "" {
		req.SetHeader("Cookie", f.cfg.Cookie)
	}

	appLog.Debug("kml fetch start", "day", day.Format("2006-01-02"))
	resp, err := req.Get(DayPath(day))
	if err != nil {
		return "", false, fmt.Errorf("fetch %s: %w", day.Format("2006-01-02"), err)
	}
	if resp.StatusCode() != http.StatusOK {
		appLog.Info("kml fetch non-OK; skipping day", "day", day.Format("2006-01-02"), "status", resp.StatusCode())
		return "", false, nil
	}

	if err := writeAtomic(path, resp.Body()); err != nil {
		return "", false, err
	}
	appLog.Info("kml fetch success", "day", day.Format("2006-01-02"), "bytes", len(resp.Body()))
	return path, true, nil
}

func (f *Fetcher) pause(ctx context.Context) error {
	if f.cfg.MaxJitter <= 0 {
		return ctx.Err()
	}
	d := time.Duration(rand.Int63n(int64(f.cfg.MaxJitter)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// writeAtomic writes via a temp file in the same directory then renames.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lochist-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
