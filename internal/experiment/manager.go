// Package experiment drives approved learning patterns through the
// pending -> running -> completed lifecycle against the simulated trade
// ledger. Every mutation persists the full collections and notifies
// subscribers before returning; completion detection runs on independent,
// per-experiment polls.
package experiment

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
	"patternlab/internal/refine"
	"patternlab/internal/store"
	"patternlab/internal/trade"
)

var (
	ErrAlreadyApproved = errors.New("experiment already exists for this pattern")
	ErrNotFound        = errors.New("experiment not found")
	ErrNotCompleted    = errors.New("experiment is not completed")
)

const (
	defaultPollInterval = 5 * time.Second
	defaultLogRetention = 200
	refineTimeout       = 60 * time.Second
)

// TradeLedger is the slice of the trade-execution collaborator the lifecycle
// depends on: fire-and-forget opens plus a queryable ledger.
type TradeLedger interface {
	OpenPosition(ctx context.Context, asset, direction string)
	ListTrades(ctx context.Context) []trade.Trade
}

type Manager struct {
	Store   store.KV
	Ledger  TradeLedger
	Advisor refine.Advisor
	Logger  *zap.Logger

	PollInterval time.Duration
	// MaxRunning bounds a completion poll when > 0; zero polls until the
	// trade closes or the experiment is recycled.
	MaxRunning   time.Duration
	LogRetention int

	mu          sync.Mutex
	experiments map[string]*models.Experiment
	logs        []models.LogEntry
	polls       map[string]context.CancelFunc
	subs        map[int]func()
	nextSub     int
}

func (m *Manager) initLocked() {
	if m.experiments == nil {
		m.experiments = map[string]*models.Experiment{}
	}
	if m.polls == nil {
		m.polls = map[string]context.CancelFunc{}
	}
	if m.subs == nil {
		m.subs = map[int]func(){}
	}
}

// Load restores the persisted collections. Missing or malformed data leaves
// the collections empty. Experiments found running are re-attached to their
// completion polls.
func (m *Manager) Load(ctx context.Context) {
	if m == nil || m.Store == nil {
		return
	}
	var saved []models.Experiment
	var logs []models.LogEntry
	if _, err := store.GetJSON(ctx, m.Store, store.KeyExperiments, &saved); err != nil && m.Logger != nil {
		m.Logger.Warn("load experiments failed", zap.Error(err))
	}
	if _, err := store.GetJSON(ctx, m.Store, store.KeyExperimentLogs, &logs); err != nil && m.Logger != nil {
		m.Logger.Warn("load experiment logs failed", zap.Error(err))
	}

	m.mu.Lock()
	m.initLocked()
	for i := range saved {
		exp := saved[i]
		m.experiments[exp.ID] = &exp
		if exp.Status == models.StatusRunning && exp.Result != nil && exp.Result.TradeID != "" {
			m.startPollLocked(exp.ID, exp.Result.TradeID)
		}
	}
	m.logs = logs
	m.mu.Unlock()

	if m.Logger != nil {
		m.Logger.Info("experiments restored",
			zap.Int("experiments", len(saved)),
			zap.Int("log_entries", len(logs)),
		)
	}
}

// Approve turns a discovered pattern into a pending experiment and dispatches
// it against the live snapshot. Re-approval of a known pattern id is a no-op.
func (m *Manager) Approve(ctx context.Context, lp models.LearningPattern, snapshot models.AssetSnapshot) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.initLocked()
	if _, exists := m.experiments[lp.ID]; exists {
		m.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Warn("pattern already approved", zap.String("pattern_id", lp.ID))
		}
		return ErrAlreadyApproved
	}
	exp := &models.Experiment{
		LearningPattern: lp,
		Status:          models.StatusPending,
		ApprovedAt:      time.Now().UTC(),
	}
	m.experiments[lp.ID] = exp
	m.appendLogLocked(models.LogInfo, fmt.Sprintf("Approved pattern %q (%s %s)", lp.Title, lp.TradeDirection, lp.AffectedAsset), lp.ID)
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()

	metrics.ExperimentsApproved.Inc()
	m.dispatch(ctx, lp.ID, snapshot)
	return nil
}

// dispatch resolves the affected asset, opens the simulated position and
// links the experiment to the newest unlinked open trade. Either failure mode
// completes the experiment with a nil pnl instead of erroring, so it still
// surfaces next to successful experiments.
func (m *Manager) dispatch(ctx context.Context, id string, snapshot models.AssetSnapshot) {
	m.mu.Lock()
	exp, ok := m.experiments[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	quote, resolved := snapshot.Resolve(exp.AffectedAsset)
	if !resolved {
		m.failDispatchLocked(ctx, exp, "asset not present in live snapshot")
		m.mu.Unlock()
		m.notify()
		return
	}
	exp.Status = models.StatusRunning
	direction := exp.TradeDirection
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()

	if m.Ledger == nil {
		m.completeAsFailed(ctx, id, "no trade ledger configured")
		return
	}
	m.Ledger.OpenPosition(ctx, quote.Symbol, direction)
	trades := m.Ledger.ListTrades(ctx)

	m.mu.Lock()
	exp, ok = m.experiments[id]
	if !ok || exp.Status != models.StatusRunning {
		// Recycled while the open was in flight.
		m.mu.Unlock()
		return
	}
	tradeID := m.findUnlinkedTradeLocked(trades, quote.Symbol)
	if tradeID == "" {
		m.failDispatchLocked(ctx, exp, "no open trade found for asset")
		m.mu.Unlock()
		m.notify()
		return
	}
	exp.Result = &models.ExperimentResult{TradeID: tradeID}
	m.startPollLocked(id, tradeID)
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()

	if m.Logger != nil {
		m.Logger.Info("experiment dispatched",
			zap.String("experiment_id", id),
			zap.String("trade_id", tradeID),
			zap.String("asset", quote.Symbol),
		)
	}
}

// findUnlinkedTradeLocked picks the most recent open trade for the asset not
// already linked to another experiment.
func (m *Manager) findUnlinkedTradeLocked(trades []trade.Trade, asset string) string {
	linked := map[string]struct{}{}
	for _, e := range m.experiments {
		if e.Result != nil && e.Result.TradeID != "" {
			linked[e.Result.TradeID] = struct{}{}
		}
	}
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.Asset != asset || t.Status != trade.StatusOpen {
			continue
		}
		if _, taken := linked[t.ID]; taken {
			continue
		}
		return t.ID
	}
	return ""
}

func (m *Manager) failDispatchLocked(ctx context.Context, exp *models.Experiment, reason string) {
	exp.Status = models.StatusCompleted
	if exp.Result == nil {
		exp.Result = &models.ExperimentResult{}
	}
	exp.Result.PnL = nil
	m.appendLogLocked(models.LogFailure, fmt.Sprintf("Dispatch of %q failed: %s", exp.Title, reason), exp.ID)
	m.persistLocked(ctx)
	metrics.ExperimentsCompleted.WithLabelValues(models.LogFailure).Inc()
	if m.Logger != nil {
		m.Logger.Warn("experiment dispatch failed",
			zap.String("experiment_id", exp.ID),
			zap.String("reason", reason),
		)
	}
}

func (m *Manager) completeAsFailed(ctx context.Context, id, reason string) {
	m.mu.Lock()
	exp, ok := m.experiments[id]
	if !ok || exp.Status == models.StatusCompleted {
		m.mu.Unlock()
		return
	}
	m.failDispatchLocked(ctx, exp, reason)
	m.mu.Unlock()
	m.notify()
}

// startPollLocked registers a cancellable completion poll for a linked trade.
func (m *Manager) startPollLocked(id, tradeID string) {
	base := context.Background()
	var pollCtx context.Context
	var cancel context.CancelFunc
	if m.MaxRunning > 0 {
		pollCtx, cancel = context.WithTimeout(base, m.MaxRunning)
	} else {
		pollCtx, cancel = context.WithCancel(base)
	}
	if old := m.polls[id]; old != nil {
		old()
	}
	m.polls[id] = cancel
	go m.pollCompletion(pollCtx, id, tradeID)
}

func (m *Manager) pollCompletion(ctx context.Context, id, tradeID string) {
	interval := m.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				m.completeAsFailed(context.Background(), id, "max running duration exceeded")
				m.stopPoll(id)
			}
			return
		case <-ticker.C:
			var closed *trade.Trade
			for _, t := range m.Ledger.ListTrades(ctx) {
				if t.ID == tradeID && t.Status == trade.StatusClosed {
					closed = &t
					break
				}
			}
			if closed == nil {
				continue
			}
			m.finishExperiment(id, tradeID, closed.PnL)
			return
		}
	}
}

func (m *Manager) finishExperiment(id, tradeID string, pnl *float64) {
	m.mu.Lock()
	exp, ok := m.experiments[id]
	if !ok || exp.Status != models.StatusRunning || exp.Result == nil || exp.Result.TradeID != tradeID {
		m.mu.Unlock()
		return
	}
	exp.Status = models.StatusCompleted
	exp.Result.PnL = pnl

	outcome := models.LogFailure
	value := 0.0
	if pnl != nil {
		value = *pnl
	}
	if value >= 0 {
		outcome = models.LogSuccess
	}
	m.appendLogLocked(outcome, fmt.Sprintf("Experiment %q completed with pnl %.2f USD", exp.Title, value), id)
	if cancel := m.polls[id]; cancel != nil {
		cancel()
		delete(m.polls, id)
	}
	m.persistLocked(context.Background())
	m.mu.Unlock()
	m.notify()

	metrics.ExperimentsCompleted.WithLabelValues(outcome).Inc()
	if m.Logger != nil {
		m.Logger.Info("experiment completed",
			zap.String("experiment_id", id),
			zap.String("outcome", outcome),
			zap.Float64("pnl", value),
		)
	}
}

func (m *Manager) stopPoll(id string) {
	m.mu.Lock()
	if cancel := m.polls[id]; cancel != nil {
		cancel()
		delete(m.polls, id)
	}
	m.mu.Unlock()
}

// Recycle removes the experiment immediately, stops its poll and asks the
// advisor for a refinement of a snapshot of the removed record. The
// suggestion is advisory: logged, never re-inserted.
func (m *Manager) Recycle(ctx context.Context, id string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.initLocked()
	exp, ok := m.experiments[id]
	if !ok {
		m.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Warn("recycle of unknown experiment", zap.String("experiment_id", id))
		}
		return ErrNotFound
	}
	snapshot := *exp
	if exp.Result != nil {
		resultCopy := *exp.Result
		snapshot.Result = &resultCopy
	}
	if cancel := m.polls[id]; cancel != nil {
		cancel()
		delete(m.polls, id)
	}
	delete(m.experiments, id)
	m.appendLogLocked(models.LogInfo, fmt.Sprintf("Recycled experiment %q", snapshot.Title), id)
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()

	go m.requestRefinement(snapshot)
	return nil
}

func (m *Manager) requestRefinement(snapshot models.Experiment) {
	if m.Advisor == nil {
		return
	}
	var priorPnL *float64
	if snapshot.Result != nil {
		priorPnL = snapshot.Result.PnL
	}
	ctx, cancel := context.WithTimeout(context.Background(), refineTimeout)
	defer cancel()
	suggestion, err := m.Advisor.SuggestRefinement(ctx, snapshot, priorPnL)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("refinement request failed",
				zap.String("experiment_id", snapshot.ID),
				zap.Error(err),
			)
		}
		return
	}
	m.mu.Lock()
	m.initLocked()
	m.appendLogLocked(models.LogInfo, fmt.Sprintf("Refinement for %q: %s", snapshot.Title, suggestion), snapshot.ID)
	m.persistLocked(context.Background())
	m.mu.Unlock()
	m.notify()
}

// Resume re-arms a completed experiment: back to pending, result cleared,
// approval timestamp refreshed, then re-dispatched.
func (m *Manager) Resume(ctx context.Context, id string, snapshot models.AssetSnapshot) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.initLocked()
	exp, ok := m.experiments[id]
	if !ok {
		m.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Warn("resume of unknown experiment", zap.String("experiment_id", id))
		}
		return ErrNotFound
	}
	if exp.Status != models.StatusCompleted {
		m.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Warn("resume rejected: experiment not completed",
				zap.String("experiment_id", id),
				zap.String("status", exp.Status),
			)
		}
		return ErrNotCompleted
	}
	exp.Status = models.StatusPending
	exp.Result = nil
	exp.ApprovedAt = time.Now().UTC()
	m.appendLogLocked(models.LogInfo, fmt.Sprintf("Resumed experiment %q", exp.Title), id)
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()

	m.dispatch(ctx, id, snapshot)
	return nil
}

// Experiments returns the active set ordered by approval time, newest first.
func (m *Manager) Experiments() []models.Experiment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Experiment, 0, len(m.experiments))
	for _, e := range m.experiments {
		cp := *e
		if e.Result != nil {
			resultCopy := *e.Result
			cp.Result = &resultCopy
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ApprovedAt.After(out[j].ApprovedAt)
	})
	return out
}

// Get returns a copy of one experiment.
func (m *Manager) Get(id string) (models.Experiment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[id]
	if !ok {
		return models.Experiment{}, false
	}
	cp := *exp
	if exp.Result != nil {
		resultCopy := *exp.Result
		cp.Result = &resultCopy
	}
	return cp, true
}

// Logs returns the activity log, newest first.
func (m *Manager) Logs() []models.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

// Subscribe registers a no-argument callback invoked after every successful
// mutation and returns the token for Unsubscribe.
func (m *Manager) Subscribe(fn func()) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return id
}

func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

func (m *Manager) notify() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) appendLogLocked(logType, message, experimentID string) {
	entry := models.LogEntry{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Message:      message,
		Type:         logType,
		ExperimentID: experimentID,
	}
	m.logs = append([]models.LogEntry{entry}, m.logs...)
	retention := m.LogRetention
	if retention <= 0 {
		retention = defaultLogRetention
	}
	if len(m.logs) > retention {
		m.logs = m.logs[:retention]
	}
}

// persistLocked writes both collections. Persistence failures are logged and
// swallowed; in-memory state stays authoritative for the session.
func (m *Manager) persistLocked(ctx context.Context) {
	if m.Store == nil {
		return
	}
	experiments := make([]models.Experiment, 0, len(m.experiments))
	for _, e := range m.experiments {
		experiments = append(experiments, *e)
	}
	sort.Slice(experiments, func(i, j int) bool {
		return experiments[i].ApprovedAt.After(experiments[j].ApprovedAt)
	})
	if err := store.SetJSON(ctx, m.Store, store.KeyExperiments, experiments); err != nil && m.Logger != nil {
		m.Logger.Warn("persist experiments failed", zap.Error(err))
	}
	if err := store.SetJSON(ctx, m.Store, store.KeyExperimentLogs, m.logs); err != nil && m.Logger != nil {
		m.Logger.Warn("persist experiment logs failed", zap.Error(err))
	}
}
