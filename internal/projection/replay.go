// Package projection holds the folds over an event log: aggregate
// reconstruction, per-aggregate event slices, claim history and yearly
// market statistics. Every projection can be rebuilt from the log alone.
package projection

import (
	"InsMarket/internal/config"
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/state"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Reconstruct folds records into a fresh world built from cfg. It applies
// events only; nothing is decided and no randomness is drawn, so the result
// equals the live world that produced the log.
func Reconstruct(cfg config.Config, records []event.Record) (*state.World, error) {
	r, err := NewReplayer(cfg, nil, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := r.Fold(rec); err != nil {
			return nil, err
		}
	}
	return r.World(), nil
}

// Replayer folds a growing log into a world. Records can arrive one at a
// time, from a cursor over a live log, or over a channel.
type Replayer struct {
	world   *state.World
	metrics *observability.Metrics
	logger  zerolog.Logger

	applied int64
	lastDay event.Day
}

func NewReplayer(cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*Replayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, err := state.NewWorld(cfg)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	return &Replayer{world: world, metrics: metrics, logger: logger}, nil
}

// Fold applies one record. Records must arrive in log order.
func (r *Replayer) Fold(rec event.Record) error {
	if rec.Event == nil {
		return fmt.Errorf("replay: record %d has no event", r.applied)
	}
	if r.applied > 0 && rec.Day < r.lastDay {
		return fmt.Errorf("replay: record %d on day %d after day %d", r.applied, rec.Day, r.lastDay)
	}
	r.world.Apply(rec.Day, rec.Event)
	r.applied++
	r.lastDay = rec.Day
	if r.metrics != nil {
		r.metrics.ReplayEventsTotal.Inc()
	}
	return nil
}

// CatchUp folds every record appended to the log since the cursor's last
// read and returns how many it applied. On error the cursor is left on the
// record that failed, so every record before it is applied exactly once.
func (r *Replayer) CatchUp(c *core.Cursor) (int, error) {
	start := c.Position()
	records := c.Next()
	for i, rec := range records {
		if err := r.Fold(rec); err != nil {
			c.Seek(start + int64(i))
			return i, err
		}
	}
	return len(records), nil
}

// Run folds records from in until the channel closes or ctx is done.
func (r *Replayer) Run(ctx context.Context, in <-chan event.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-in:
			if !ok {
				r.logger.Info().
					Int64("applied", r.applied).
					Int64("last_day", int64(r.lastDay)).
					Msg("replay complete")
				return nil
			}
			if err := r.Fold(rec); err != nil {
				return err
			}
		}
	}
}

func (r *Replayer) World() *state.World { return r.world }
func (r *Replayer) Applied() int64      { return r.applied }

// OwnedEvents returns the records whose routing names target, in log order.
// Routing depends on state (the exposure index, a policy's panel), so the
// log is folded through a scratch world while it is scanned.
func OwnedEvents(cfg config.Config, records []event.Record, target state.Target) ([]event.Record, error) {
	r, err := NewReplayer(cfg, nil, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	var out []event.Record
	for _, rec := range records {
		if rec.Event != nil && r.world.Names(rec.Event, target) {
			out = append(out, rec)
		}
		if err := r.Fold(rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}
