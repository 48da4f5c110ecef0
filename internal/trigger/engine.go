// Package trigger owns activated signals promoted from completed experiments
// and fires them against live price/sentiment snapshots, one cooldown per
// signal measured from its most recent recorded event.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"patternlab/internal/metrics"
	"patternlab/internal/models"
	"patternlab/internal/store"
)

var (
	ErrAlreadyPromoted = errors.New("signal already exists for this experiment")
	ErrNotCompleted    = errors.New("only completed experiments can be promoted")
)

const (
	defaultCooldown       = time.Hour
	defaultEventRetention = 50
)

type Engine struct {
	Store  store.KV
	Logger *zap.Logger

	Cooldown       time.Duration
	EventRetention int

	mu      sync.Mutex
	signals map[string]models.AvailableSignal
	events  []models.SignalEvent
	subs    map[int]func()
	nextSub int
}

func (e *Engine) initLocked() {
	if e.signals == nil {
		e.signals = map[string]models.AvailableSignal{}
	}
	if e.subs == nil {
		e.subs = map[int]func(){}
	}
}

// Load restores activated signals and the event log; malformed or missing
// data degrades to empty collections.
func (e *Engine) Load(ctx context.Context) {
	if e == nil || e.Store == nil {
		return
	}
	var signals []models.AvailableSignal
	var events []models.SignalEvent
	if _, err := store.GetJSON(ctx, e.Store, store.KeySignals, &signals); err != nil && e.Logger != nil {
		e.Logger.Warn("load signals failed", zap.Error(err))
	}
	if _, err := store.GetJSON(ctx, e.Store, store.KeySignalEvents, &events); err != nil && e.Logger != nil {
		e.Logger.Warn("load signal events failed", zap.Error(err))
	}

	e.mu.Lock()
	e.initLocked()
	for _, s := range signals {
		e.signals[s.ID] = s
	}
	e.events = events
	e.mu.Unlock()

	if e.Logger != nil {
		e.Logger.Info("signals restored",
			zap.Int("signals", len(signals)),
			zap.Int("events", len(events)),
		)
	}
}

// Promote activates a completed experiment as a live signal under the
// supplied trigger condition. Promotion is idempotent per experiment id; the
// threshold policy belongs to the caller.
func (e *Engine) Promote(ctx context.Context, exp models.Experiment, cond models.TriggerCondition) (models.AvailableSignal, error) {
	if exp.Status != models.StatusCompleted {
		return models.AvailableSignal{}, ErrNotCompleted
	}
	e.mu.Lock()
	e.initLocked()
	if existing, ok := e.signals[exp.ID]; ok {
		e.mu.Unlock()
		if e.Logger != nil {
			e.Logger.Warn("experiment already promoted", zap.String("experiment_id", exp.ID))
		}
		return existing, ErrAlreadyPromoted
	}
	signal := models.AvailableSignal{
		ID:               exp.ID,
		Title:            exp.Title,
		Description:      exp.Description,
		TriggerAsset:     exp.TriggerAsset,
		AffectedAsset:    exp.AffectedAsset,
		TradeDirection:   exp.TradeDirection,
		TriggerCondition: cond,
	}
	e.signals[exp.ID] = signal
	e.persistLocked(ctx)
	e.mu.Unlock()
	e.notify()

	if e.Logger != nil {
		e.Logger.Info("signal activated",
			zap.String("signal_id", signal.ID),
			zap.String("condition", describeCondition(cond)),
		)
	}
	return signal, nil
}

// Evaluate runs every activated signal against the live snapshot. Unresolved
// assets and missing sentiment skip the signal for this tick; hits under
// cooldown are skipped silently.
func (e *Engine) Evaluate(ctx context.Context, snapshot models.AssetSnapshot, sentiment *models.SentimentSnapshot) {
	if e == nil {
		return
	}
	now := time.Now().UTC()

	e.mu.Lock()
	e.initLocked()
	fired := 0
	for _, s := range e.signals {
		value, price, ok := resolveMetric(s, snapshot, sentiment)
		if !ok {
			continue
		}
		if !compare(value, s.TriggerCondition.Operator, s.TriggerCondition.Threshold) {
			continue
		}
		if e.underCooldownLocked(s.ID, now) {
			continue
		}
		event := models.SignalEvent{
			EventID:        uuid.New().String(),
			Signal:         s,
			TriggeredPrice: price,
			TriggeredAt:    now,
		}
		e.events = append([]models.SignalEvent{event}, e.events...)
		retention := e.EventRetention
		if retention <= 0 {
			retention = defaultEventRetention
		}
		if len(e.events) > retention {
			e.events = e.events[:retention]
		}
		e.persistLocked(ctx)
		fired++
		metrics.SignalEventsFired.Inc()
		if e.Logger != nil {
			e.Logger.Info("signal fired",
				zap.String("signal_id", s.ID),
				zap.String("metric", s.TriggerCondition.Metric),
				zap.Float64("value", value),
				zap.Float64("threshold", s.TriggerCondition.Threshold),
			)
		}
	}
	e.mu.Unlock()
	if fired > 0 {
		e.notify()
	}
}

// underCooldownLocked checks the most recent recorded event for the signal;
// there is no separate timer.
func (e *Engine) underCooldownLocked(signalID string, now time.Time) bool {
	cooldown := e.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	for _, ev := range e.events {
		if ev.Signal.ID != signalID {
			continue
		}
		return now.Sub(ev.TriggeredAt) < cooldown
	}
	return false
}

func resolveMetric(s models.AvailableSignal, snapshot models.AssetSnapshot, sentiment *models.SentimentSnapshot) (value, price float64, ok bool) {
	cond := s.TriggerCondition
	switch cond.Metric {
	case models.TriggerPriceChange24h:
		symbol := s.AffectedAsset
		if cond.Source == models.SourceTriggerAsset {
			symbol = s.TriggerAsset
		}
		quote, found := snapshot.Resolve(symbol)
		if !found {
			return 0, 0, false
		}
		return quote.PriceChange24h, quote.Price, true
	case models.TriggerSentimentScore:
		if sentiment == nil {
			return 0, 0, false
		}
		// The feed's native 0-1 score is normalized to the 0-100 threshold scale.
		price := 0.0
		if quote, found := snapshot.Resolve(s.AffectedAsset); found {
			price = quote.Price
		}
		return sentiment.Score * 100, price, true
	default:
		return 0, 0, false
	}
}

func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case models.OpGreaterThan:
		return value > threshold
	case models.OpLessThan:
		return value < threshold
	default:
		return false
	}
}

// Signals returns the activated set ordered by id for stable display.
func (e *Engine) Signals() []models.AvailableSignal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.AvailableSignal, 0, len(e.signals))
	for _, s := range e.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events returns the trigger log, newest first.
func (e *Engine) Events() []models.SignalEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.SignalEvent, len(e.events))
	copy(out, e.events)
	return out
}

func (e *Engine) Subscribe(fn func()) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = fn
	return id
}

func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
}

func (e *Engine) notify() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.Store == nil {
		return
	}
	signals := make([]models.AvailableSignal, 0, len(e.signals))
	for _, s := range e.signals {
		signals = append(signals, s)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].ID < signals[j].ID })
	if err := store.SetJSON(ctx, e.Store, store.KeySignals, signals); err != nil && e.Logger != nil {
		e.Logger.Warn("persist signals failed", zap.Error(err))
	}
	if err := store.SetJSON(ctx, e.Store, store.KeySignalEvents, e.events); err != nil && e.Logger != nil {
		e.Logger.Warn("persist signal events failed", zap.Error(err))
	}
}

// describeCondition renders a condition for logs and API payloads.
func describeCondition(cond models.TriggerCondition) string {
	op := ">"
	if cond.Operator == models.OpLessThan {
		op = "<"
	}
	return fmt.Sprintf("%s %s %.2f (%s)", cond.Metric, op, cond.Threshold, cond.Source)
}
