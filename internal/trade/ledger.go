// Package trade is the simulated trade-execution collaborator: a queryable
// in-memory ledger of paper positions. The experiment lifecycle treats it as
// an external system reached through OpenPosition and ListTrades only.
package trade

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"patternlab/internal/models"
)

// Trade statuses as the ledger reports them.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

type Trade struct {
	ID          string     `json:"id"`
	Asset       string     `json:"asset"`
	Direction   string     `json:"direction"`
	Status      string     `json:"status"`
	EntryPrice  float64    `json:"entry_price"`
	NotionalUSD float64    `json:"notional_usd"`
	PnL         *float64   `json:"pnl,omitempty"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// PaperLedger simulates execution against the latest known quotes. Orders
// never touch an exchange; fills happen at the current snapshot price.
type PaperLedger struct {
	Logger *zap.Logger

	// Quotes supplies the latest snapshot used for fills and settlement.
	Quotes func() models.AssetSnapshot

	PositionUSD float64
	HoldFor     time.Duration

	mu     sync.Mutex
	trades []Trade
}

// OpenPosition opens a paper position sized in quote currency. Fire and
// forget: an unresolvable asset is logged and produces no trade, which the
// caller observes as trade-not-found.
func (l *PaperLedger) OpenPosition(ctx context.Context, asset, direction string) {
	_ = ctx
	if l == nil {
		return
	}
	var snapshot models.AssetSnapshot
	if l.Quotes != nil {
		snapshot = l.Quotes()
	}
	quote, ok := snapshot.Resolve(asset)
	if !ok || quote.Price <= 0 {
		if l.Logger != nil {
			l.Logger.Warn("paper ledger has no quote for asset", zap.String("asset", asset))
		}
		return
	}
	notional := l.PositionUSD
	if notional <= 0 {
		notional = 1000
	}

	t := Trade{
		ID:          uuid.New().String(),
		Asset:       quote.Symbol,
		Direction:   direction,
		Status:      StatusOpen,
		EntryPrice:  quote.Price,
		NotionalUSD: notional,
		OpenedAt:    time.Now().UTC(),
	}
	l.mu.Lock()
	l.trades = append(l.trades, t)
	l.mu.Unlock()

	if l.Logger != nil {
		l.Logger.Info("paper position opened",
			zap.String("trade_id", t.ID),
			zap.String("asset", t.Asset),
			zap.String("direction", direction),
			zap.Float64("entry", t.EntryPrice),
		)
	}
}

// ListTrades returns a copy of the full ledger, oldest first.
func (l *PaperLedger) ListTrades(ctx context.Context) []Trade {
	_ = ctx
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Settle closes every open trade held longer than HoldFor at the current
// quote and returns how many it closed.
func (l *PaperLedger) Settle(ctx context.Context) int {
	_ = ctx
	if l == nil {
		return 0
	}
	hold := l.HoldFor
	if hold <= 0 {
		hold = 10 * time.Minute
	}
	var snapshot models.AssetSnapshot
	if l.Quotes != nil {
		snapshot = l.Quotes()
	}
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	closed := 0
	for i := range l.trades {
		t := &l.trades[i]
		if t.Status != StatusOpen || now.Sub(t.OpenedAt) < hold {
			continue
		}
		quote, ok := snapshot.Resolve(t.Asset)
		if !ok || quote.Price <= 0 {
			continue
		}
		pnl := realizedPnL(t.EntryPrice, quote.Price, t.NotionalUSD, t.Direction)
		t.Status = StatusClosed
		t.PnL = &pnl
		t.ClosedAt = &now
		closed++
		if l.Logger != nil {
			l.Logger.Info("paper position settled",
				zap.String("trade_id", t.ID),
				zap.String("asset", t.Asset),
				zap.Float64("pnl", pnl),
			)
		}
	}
	return closed
}

// CloseTrade closes one trade at an explicit pnl. Used by tests and manual
// intervention; returns false when the trade is unknown or already closed.
func (l *PaperLedger) CloseTrade(id string, pnl float64) bool {
	if l == nil {
		return false
	}
	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.trades {
		t := &l.trades[i]
		if t.ID != id || t.Status != StatusOpen {
			continue
		}
		t.Status = StatusClosed
		t.PnL = &pnl
		t.ClosedAt = &now
		return true
	}
	return false
}

// realizedPnL computes the signed USD outcome of closing a position. Money
// math stays in decimals until the final conversion.
func realizedPnL(entry, exit, notionalUSD float64, direction string) float64 {
	entryD := decimal.NewFromFloat(entry)
	if entryD.IsZero() {
		return 0
	}
	size := decimal.NewFromFloat(notionalUSD).Div(entryD)
	move := decimal.NewFromFloat(exit).Sub(entryD)
	if direction == models.TradeShort {
		move = move.Neg()
	}
	pnl, _ := move.Mul(size).Float64()
	return pnl
}
