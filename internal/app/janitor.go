package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type Reaper interface {
	Reap() int
}

// Janitor reaps expired rooms on a fixed interval, on top of the lazy pass
// every operation already does. It lets memory go back even when no
// client is calling.
type Janitor struct {
	reaper   Reaper
	interval time.Duration
}

func NewJanitor(r Reaper, interval time.Duration) *Janitor {
	return &Janitor{reaper: r, interval: interval}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		log.Info().Str("module", "app.janitor").Msg("periodic reap disabled")
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.janitor").Dur("interval", j.interval).Msg("janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.janitor").Msg("janitor ctx done")
			return
		case <-ticker.C:
			if n := j.reaper.Reap(); n > 0 {
				log.Debug().Str("module", "app.janitor").Int("reaped", n).Msg("sweep")
			}
		}
	}
}
