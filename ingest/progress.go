package ingest

import (
	"context"
	"time"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/store"
)

// Progress is the elapsed time and blended 0-100 estimate for a run. The
// download phase spans 0-30 and parsing 30-100; phases without a known total
// advance on an asymptotic time curve so the number keeps moving without ever
// claiming completion.
type Progress struct {
	Elapsed time.Duration
	Percent int
}

// Progress reports progress for the run with the given UUID, or for the most
// recent run when uuid is empty. Finalized runs always report 100.
func (i *Importer) Progress(ctx context.Context, uuid string) (*Progress, error) {
	var imp *store.Import
	var err error
	if uuid != "" {
		imp, err = i.imports.GetImport(ctx, uuid)
	} else {
		imp, err = i.imports.LastImport(ctx)
	}
	if err != nil {
		return nil, err
	}
	if imp == nil {
		return nil, errors.NewNotFoundError("no imports have run")
	}

	if imp.Stopped() {
		return &Progress{Elapsed: imp.Duration(), Percent: 100}, nil
	}

	elapsed := time.Since(imp.LocalStartedAt)
	return &Progress{Elapsed: elapsed, Percent: i.percent(elapsed)}, nil
}

func (i *Importer) percent(elapsed time.Duration) int {
	t := elapsed.Seconds()

	if i.usingFeed.Load() && !i.feed.Downloaded() {
		downloaded := i.feed.BytesDownloaded()
		total := i.feed.TotalBytesToDownload()
		switch {
		case downloaded == 0:
			// waiting for the first bytes: creep toward 10
			return int(t / (t + 5) * 10)
		case total <= 0:
			return int(10 + t/(t+100)*20)
		default:
			return int(10 + float64(downloaded)/float64(total)*20)
		}
	}

	total := i.total.Load()
	if total < 0 {
		return int(30 + t/(t+100)*70)
	}
	if total == 0 {
		return 30
	}

	var processed int64
	if in := i.in.Load(); in != nil {
		processed = in.Count()
	}
	percent := int(30 + float64(processed)/float64(total)*70)
	if percent > 100 {
		percent = 100
	}
	return percent
}

// IsRunning reports whether a run is in flight. A persisted run left open by a
// crashed process is healed on the way: it is marked failed and finalized so
// it can never block future runs.
func (i *Importer) IsRunning(ctx context.Context) (bool, error) {
	if i.registry.Active() {
		return true, nil
	}

	last, err := i.imports.LastImport(ctx)
	if err != nil {
		return false, err
	}
	if last == nil || last.Stopped() {
		return false, nil
	}

	i.logger.Warnw("Healing interrupted import", "uuid", last.UUID)
	if err := i.imports.FailImport(ctx, last, "Process terminated before completion"); err != nil {
		return false, err
	}
	if err := i.imports.StopImport(ctx, last); err != nil {
		return false, err
	}
	return false, nil
}
