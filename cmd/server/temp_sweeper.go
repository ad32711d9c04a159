package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// staleSweeper removes leftover work from interrupted requests. The concrete
// implementation scans the uploads root for orphaned temp files.
type staleSweeper interface {
	SweepStale() error
}

type sweepTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) sweepTicker

func startTempSweepWorker(ctx context.Context, logger *slog.Logger, sweeper staleSweeper, interval time.Duration) func() {
	return startTempSweepWorkerWithTicker(ctx, logger, sweeper, interval, func(d time.Duration) sweepTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startTempSweepWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	sweeper staleSweeper,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if sweeper == nil || interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				if err := sweeper.SweepStale(); err != nil && logger != nil {
					logger.Error("failed to sweep stale uploads", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// tempFileSweeper deletes pending-upload temp files that outlived their
// request. A crash between multipart receipt and pipeline handoff is the only
// way such files survive.
type tempFileSweeper struct {
	root   string
	maxAge time.Duration
}

func (s tempFileSweeper) SweepStale() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "pending-upload-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(s.root, entry.Name()))
	}
	return nil
}
