package kml

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	appLog "lochist/internal/log"
	"lochist/internal/model"
	"lochist/internal/table"
)

// LoadOptions controls how a directory of exports is turned into a table.
type LoadOptions struct {
	// Location is the zone events are rendered in; nil means time.Local.
	Location *time.Location
	// Strict aborts on the first bad record instead of skipping it.
	Strict bool
}

// LoadReport summarises a load.
type LoadReport struct {
	Files   int
	Records int
	Skipped int
	// Rows is the merged row count.
	Rows int
}

// LoadFile parses and normalizes a single export into a table. Bad
// records are logged and skipped unless strict is set.
func LoadFile(path string, n Normalizer, strict bool) (table.Table, int, error) {
	marks, recErrs, err := ParseFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	skipped := 0
	for _, rerr := range recErrs {
		if strict {
			return nil, 0, fmt.Errorf("%s: %w", path, rerr)
		}
		appLog.Warn("skipping malformed placemark", "file", filepath.Base(path), "err", rerr)
		skipped++
	}

	events := make([]model.Event, 0, len(marks))
	for _, pm := range marks {
		ev, err := n.Normalize(pm)
		if err != nil {
			if strict {
				return nil, 0, fmt.Errorf("%s: placemark %d: %w", path, pm.Index, err)
			}
			appLog.Warn("skipping placemark", "file", filepath.Base(path), "index", pm.Index, "err", err)
			skipped++
			continue
		}
		events = append(events, ev)
	}

	return table.Build(events), skipped, nil
}

// LoadDir loads every *.kml file in dir and merges them into one table.
func LoadDir(dir string, opts LoadOptions) (table.Table, LoadReport, error) {
	var report LoadReport

	files, err := filepath.Glob(filepath.Join(dir, "*.kml"))
	if err != nil {
		return nil, report, err
	}
	slices.Sort(files)
	report.Files = len(files)

	appLog.Info(fmt.Sprintf("%d KML files (ie %d days) to concatenate", len(files), len(files)), "dir", dir)

	n := NewNormalizer(opts.Location)
	tables := make([]table.Table, 0, len(files))
	for _, f := range files {
		t, skipped, err := LoadFile(f, n, opts.Strict)
		if err != nil {
			return nil, report, err
		}
		report.Records += len(t) + skipped
		report.Skipped += skipped
		appLog.Debug("kml file loaded", "file", filepath.Base(f), "events", len(t), "skipped", skipped)
		tables = append(tables, t)
	}

	merged := table.Merge(tables...)
	report.Rows = len(merged)

	appLog.Info("kml load completed",
		"files", report.Files,
		"records", report.Records,
		"skipped", report.Skipped,
		"rows", report.Rows,
	)
	return merged, report, nil
}
