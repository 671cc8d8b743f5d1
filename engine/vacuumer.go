package engine

import (
	"context"
	"sync"
	"time"

	"mvdb/engine/tx"

	"github.com/rs/zerolog/log"
)

// Vacuumer runs garbage collection in the background on a fixed interval.
type Vacuumer struct {
	tm       *tx.Manager
	interval time.Duration

	mutex   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	passes  int
	last    tx.GCStats
	running bool
}

func NewVacuumer(tm *tx.Manager, interval time.Duration) *Vacuumer {
	return &Vacuumer{
		tm:       tm,
		interval: interval,
	}
}

// Vacuum runs one pass immediately.
func (v *Vacuumer) Vacuum() tx.GCStats {
	stats := v.tm.GarbageCollection()

	v.mutex.Lock()
	v.passes++
	v.last = stats
	v.mutex.Unlock()

	if stats.ErasedTxns > 0 || stats.RepairedRows > 0 {
		log.Info().
			Uint64("watermark", uint64(stats.Watermark)).
			Int("erased", stats.ErasedTxns).
			Int("repaired", stats.RepairedRows).
			Msg("vacuumer: reclaimed history")
	}
	return stats
}

// Start launches the background loop. It stops when ctx is done or Stop is
// called; starting twice is a no-op.
func (v *Vacuumer) Start(ctx context.Context) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	v.running = true

	go v.loop(ctx, v.done)

	log.Info().Dur("interval", v.interval).Msg("vacuumer: started")
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (v *Vacuumer) Stop() {
	v.mutex.Lock()
	if !v.running {
		v.mutex.Unlock()
		return
	}
	cancel, done := v.cancel, v.done
	v.running = false
	v.mutex.Unlock()

	cancel()
	<-done

	log.Info().Msg("vacuumer: stopped")
}

// Stats returns the number of completed passes and the result of the last one.
func (v *Vacuumer) Stats() (int, tx.GCStats) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return v.passes, v.last
}

func (v *Vacuumer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Vacuum()
		}
	}
}
