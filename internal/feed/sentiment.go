package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"patternlab/internal/models"
)

// SentimentPoller keeps the single global sentiment reading fresh. Scores are
// stored on the feed's native 0-1 scale.
type SentimentPoller struct {
	HTTP     *http.Client
	Endpoint string
	Logger   *zap.Logger

	mu     sync.RWMutex
	latest *models.SentimentSnapshot
}

// fngResponse matches the alternative.me fear-and-greed payload: values are
// stringly-typed on a 0-100 scale.
type fngResponse struct {
	Data []struct {
		Value string `json:"value"`
	} `json:"data"`
}

// Latest returns the most recent reading, or nil before the first poll.
func (p *SentimentPoller) Latest() *models.SentimentSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil
	}
	cp := *p.latest
	return &cp
}

// Set overrides the reading. Used for bootstrap and tests.
func (p *SentimentPoller) Set(snapshot models.SentimentSnapshot) {
	p.mu.Lock()
	p.latest = &snapshot
	p.mu.Unlock()
}

// Poll fetches one reading. Failures keep the previous reading in place.
func (p *SentimentPoller) Poll(ctx context.Context) error {
	if p == nil || p.Endpoint == "" {
		return fmt.Errorf("sentiment endpoint not configured")
	}
	httpClient := p.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sentiment feed returned %d", resp.StatusCode)
	}
	var parsed fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if len(parsed.Data) == 0 {
		return fmt.Errorf("sentiment feed returned no data")
	}
	raw, err := strconv.ParseFloat(parsed.Data[0].Value, 64)
	if err != nil {
		return err
	}

	p.Set(models.SentimentSnapshot{
		Score:     raw / 100,
		FetchedAt: time.Now().UTC(),
	})
	if p.Logger != nil {
		p.Logger.Debug("sentiment refreshed", zap.Float64("score", raw/100))
	}
	return nil
}
