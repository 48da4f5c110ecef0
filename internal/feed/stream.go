package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"patternlab/internal/models"
)

// Stream maintains the latest per-asset quote snapshot from a ticker
// websocket (binance !ticker@arr shape). Consumers read via Snapshot; the
// stream reconnects with backoff until its context ends.
type Stream struct {
	Logger *zap.Logger

	URL    string
	Assets []string

	mu     sync.RWMutex
	quotes models.AssetSnapshot
}

type tickerMessage struct {
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	ChangePct string `json:"P"`
}

// Snapshot returns a copy of the latest quotes.
func (s *Stream) Snapshot() models.AssetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.AssetSnapshot, len(s.quotes))
	for k, v := range s.quotes {
		out[k] = v
	}
	return out
}

// SetQuote seeds or overrides one quote. Used for bootstrap and tests.
func (s *Stream) SetQuote(q models.AssetQuote) {
	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	if symbol == "" {
		return
	}
	q.Symbol = symbol
	s.mu.Lock()
	if s.quotes == nil {
		s.quotes = models.AssetSnapshot{}
	}
	s.quotes[symbol] = q
	s.mu.Unlock()
}

// Run dials the ticker stream and keeps the snapshot fresh until ctx ends.
func (s *Stream) Run(ctx context.Context) error {
	if s == nil || strings.TrimSpace(s.URL) == "" {
		return nil
	}
	backoff := time.Second
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.Logger != nil {
			s.Logger.Warn("ticker stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}()
	conn.SetReadLimit(1 << 22) // the full-market ticker array is large

	tracked := map[string]string{}
	for _, a := range s.Assets {
		asset := strings.ToUpper(strings.TrimSpace(a))
		if asset != "" {
			tracked[asset+"USDT"] = asset
		}
	}

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var ticks []tickerMessage
		if err := json.Unmarshal(msg, &ticks); err != nil {
			// Single-ticker streams deliver one object per message.
			var one tickerMessage
			if err := json.Unmarshal(msg, &one); err != nil {
				continue
			}
			ticks = []tickerMessage{one}
		}
		for _, t := range ticks {
			asset, ok := tracked[strings.ToUpper(t.Symbol)]
			if !ok {
				continue
			}
			price, err1 := strconv.ParseFloat(t.LastPrice, 64)
			change, err2 := strconv.ParseFloat(t.ChangePct, 64)
			if err1 != nil || err2 != nil || price <= 0 {
				continue
			}
			s.SetQuote(models.AssetQuote{
				Symbol:         asset,
				Price:          price,
				PriceChange24h: change,
			})
		}
	}
}
