package core

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/rng"
	"InsMarket/internal/state"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrMaxEvents is returned by Run when the MaxEvents safety valve trips.
var ErrMaxEvents = errors.New("event limit reached")

// Engine is the single-threaded dispatch loop. It owns no domain state: it
// pops the next event, hands it to every target aggregate, logs it, and
// queues what the handlers produced.
type Engine struct {
	cfg     config.Config
	world   *state.World
	rng     *rng.RNG
	queue   *Scheduler
	log     *EventLog
	hasher  *StateHasher
	days    *DayValidator
	facts   *FactGuard
	metrics *observability.Metrics
	logger  zerolog.Logger

	horizon       event.Day
	started       bool
	beyondHorizon int64
	violations    int64

	// MaxEvents stops Run after that many dispatched events; zero means no
	// limit.
	MaxEvents int
}

// NewEngine validates cfg and builds the initial world. A configuration
// error stops the run before the first event. metrics may be nil.
func NewEngine(cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, err := state.NewWorld(cfg)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	return &Engine{
		cfg:     cfg,
		world:   world,
		rng:     rng.New(cfg.Seed),
		queue:   NewScheduler(),
		log:     NewEventLog(),
		hasher:  NewStateHasher(),
		days:    NewDayValidator(),
		facts:   NewFactGuard(),
		metrics: metrics,
		logger:  logger,
		horizon: cfg.HorizonDay(),
	}, nil
}

// Start queues SimulationStart on day 0. Run calls it if nobody has.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.schedule(0, &event.SimulationStart{YearStart: 1, Years: e.cfg.Years})
}

// Schedule queues an external event. Tests use it to place losses by hand.
// It reports false when day lies beyond the horizon.
func (e *Engine) Schedule(day event.Day, ev event.Event) bool {
	return e.schedule(day, ev)
}

func (e *Engine) schedule(day event.Day, ev event.Event) bool {
	if day > e.horizon {
		e.beyondHorizon++
		if e.metrics != nil {
			e.metrics.EventsBeyondHorizon.WithLabelValues(ev.EventType().String()).Inc()
		}
		e.logger.Debug().
			Int64("day", int64(day)).
			Str("event_type", ev.EventType().String()).
			Msg("dropped event beyond horizon")
		return false
	}
	e.queue.Push(day, ev)
	return true
}

// Step dispatches one event. It returns false once the queue is empty.
func (e *Engine) Step() bool {
	item, ok := e.queue.PopMin()
	if !ok {
		return false
	}
	start := time.Now()
	day, ev := item.Day, item.Event
	eventType := ev.EventType().String()

	if err := e.days.ValidateDispatch(day); err != nil {
		e.violation("day_monotonic", err)
	}

	outs := e.world.Handle(day, ev, e.rng)

	seq := e.log.Append(day, ev)
	data, err := event.MarshalRecord(day, ev)
	if err != nil {
		e.violation("encode", err)
	}
	e.hasher.ComputeHash(seq, data)

	if err := e.facts.Observe(seq, ev); err != nil {
		e.violation("one_shot_fact", err)
	}

	for _, out := range outs {
		at := day + out.Offset
		if err := e.days.ValidateSchedule(at); err != nil {
			e.violation("schedule_past", err)
			continue
		}
		e.schedule(at, out.Event)
	}

	e.postCheck(day, ev)
	e.observe(ev, eventType, start)
	return true
}

// Run dispatches until the queue is empty, the only normal termination.
// Cancellation is honoured between events.
func (e *Engine) Run(ctx context.Context) error {
	e.Start()
	e.logger.Info().
		Uint64("seed", e.cfg.Seed).
		Int("years", e.cfg.Years).
		Int("insurers", len(e.cfg.Insurers)).
		Int("insureds", len(e.cfg.Insureds)).
		Msg("run started")

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted at day %d: %w", e.days.Current(), err)
		}
		if e.MaxEvents > 0 && e.log.Len() >= e.MaxEvents {
			return fmt.Errorf("%w: %d", ErrMaxEvents, e.MaxEvents)
		}
		if !e.Step() {
			break
		}
	}

	tip := e.Fingerprint()
	e.logger.Info().
		Int("events", e.log.Len()).
		Int64("last_day", int64(e.days.Current())).
		Int64("beyond_horizon", e.beyondHorizon).
		Int64("violations", e.violations).
		Str("fingerprint", hex.EncodeToString(tip[:])).
		Msg("run finished")
	return nil
}

// postCheck verifies the invariants an event could have broken.
func (e *Engine) postCheck(day event.Day, ev event.Event) {
	switch x := ev.(type) {
	case *event.ClaimSettled:
		ins, ok := e.world.Insurer(x.InsurerID)
		if !ok {
			return
		}
		if ins.Capital() < 0 {
			e.violation("capital_floor", fmt.Errorf("insurer %d capital %d", x.InsurerID, ins.Capital()))
		}
		if ins.Capital() == 0 && x.Amount > 0 && !ins.Insolvent() {
			e.violation("capital_floor", fmt.Errorf("insurer %d at zero capital without insolvency", x.InsurerID))
		}

	case *event.InsuredLoss:
		p, ok := e.world.Market().Policy(x.PolicyID)
		if !ok {
			e.violation("loss_window", fmt.Errorf("loss on unknown policy %d", x.PolicyID))
			return
		}
		if !p.Covered(day) {
			e.violation("loss_window", fmt.Errorf("loss on policy %d on day %d outside (%d, %d)",
				x.PolicyID, day, p.BoundDay(), p.ExpiryDay()))
		}
		if used := p.UsedIn(event.YearOf(day)); used > p.Terms().SumInsured {
			e.violation("gul_cap", fmt.Errorf("policy %d year %d ground-up %d exceeds sum insured %d",
				x.PolicyID, event.YearOf(day), used, p.Terms().SumInsured))
		}
	}
}

// violation panics in strict mode and is logged and counted otherwise.
func (e *Engine) violation(check string, err error) {
	if e.cfg.Strict {
		panic(fmt.Sprintf("FATAL: invariant violated: %s: %v", check, err))
	}
	e.violations++
	if e.metrics != nil {
		e.metrics.InvariantViolations.WithLabelValues(check).Inc()
	}
	e.logger.Error().Str("check", check).Err(err).Msg("invariant violated")
}

func (e *Engine) observe(ev event.Event, eventType string, start time.Time) {
	if x, ok := ev.(*event.InsurerInsolvent); ok {
		e.logger.Debug().
			Uint32("insurer_id", uint32(x.InsurerID)).
			Int64("day", int64(e.days.Current())).
			Msg("insurer insolvent")
	}
	if e.metrics == nil {
		return
	}
	switch x := ev.(type) {
	case *event.LeadQuoteDeclined:
		e.metrics.QuotesDeclined.WithLabelValues(string(x.Reason)).Inc()
	case *event.FollowerQuoteDeclined:
		e.metrics.QuotesDeclined.WithLabelValues(string(x.Reason)).Inc()
	case *event.SubmissionDropped:
		e.metrics.SubmissionsDropped.Inc()
	case *event.PolicyBound:
		e.metrics.PoliciesBound.Inc()
	case *event.ClaimSettled:
		e.metrics.ClaimsSettledAmount.Add(float64(x.Amount))
	case *event.InsurerInsolvent:
		e.metrics.Insolvencies.Inc()
	}
	e.metrics.EventsDispatched.WithLabelValues(eventType).Inc()
	e.metrics.DispatchDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	e.metrics.QueueDepth.Set(float64(e.queue.Len()))
	e.metrics.LogLength.Set(float64(e.log.Len()))
	e.metrics.CurrentDay.Set(float64(e.days.Current()))
}

func (e *Engine) Config() config.Config { return e.cfg }
func (e *Engine) World() *state.World   { return e.world }
func (e *Engine) Log() *EventLog        { return e.log }
func (e *Engine) Pending() int          { return e.queue.Len() }
func (e *Engine) BeyondHorizon() int64  { return e.beyondHorizon }
func (e *Engine) Violations() int64     { return e.violations }

// Fingerprint is the hash chain tip over every logged record.
func (e *Engine) Fingerprint() [32]byte {
	return e.hasher.Tip()
}
