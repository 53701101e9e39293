package service

import (
	"context"
	"os"
	"time"

	"github.com/MimeLyc/lecture-pipeline/pkg/file"
	"github.com/MimeLyc/lecture-pipeline/pkg/icron"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Maintenance periodically removes extracted audio that a crashed run left
// next to its video.
type Maintenance struct {
	videosDir string
	maxAge    time.Duration
	cronExpr  string
	cron      *cron.Cron
	now       func() time.Time
}

func NewMaintenance(videosDir, cronExpr string, maxAge time.Duration, c *cron.Cron) *Maintenance {
	return &Maintenance{
		videosDir: videosDir,
		maxAge:    maxAge,
		cronExpr:  cronExpr,
		cron:      c,
		now:       time.Now,
	}
}

var sweepGroup singleflight.Group

func (m *Maintenance) Schedule(ctx context.Context) error {
	if m.cronExpr == "" {
		log.Info("maintenance disabled")
		return nil
	}
	log.Info("scheduling maintenance with %q", m.cronExpr)

	runFunc := func() {
		_, _, _ = sweepGroup.Do("sweep", func() (any, error) {
			err := SafeExecute(func() error {
				n, err := m.SweepOrphanAudio(ctx)
				if n > 0 {
					log.Info("removed %d orphan audio files from %s", n, m.videosDir)
				}
				return err
			})
			if err != nil {
				log.Error("orphan audio sweep in %s failed: %v", m.videosDir, err)
			}
			return nil, nil
		})
	}
	_, err := m.cron.AddFunc(m.cronExpr, runFunc)
	return err
}

// SweepOrphanAudio deletes extracted audio in the videos directory older
// than the configured age and returns how many were removed. Uploaded .wav
// recordings are sources and stay.
func (m *Maintenance) SweepOrphanAudio(ctx context.Context) (int, error) {
	stale, err := file.FindStaleAudio(m.videosDir, m.now().Add(-m.maxAge))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range stale {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if err := os.Remove(path); err != nil {
			log.Warn("could not remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Info describes the sweep schedule, or nil when maintenance is off.
func (m *Maintenance) Info() *icron.TriggerInfo {
	if m == nil || m.cronExpr == "" {
		return nil
	}
	info, err := icron.GetTriggerInfo(m.cronExpr, m.now())
	if err != nil {
		return nil
	}
	return info
}
