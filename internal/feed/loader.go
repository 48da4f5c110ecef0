package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"patternlab/internal/history"
)

// Loader fetches the historical dataset from the upstream feed. A fetch
// failure is a hard error: the core cannot operate without a loaded series.
type Loader struct {
	HTTP     *http.Client
	Endpoint string
	Logger   *zap.Logger
}

func (l *Loader) FetchRows(ctx context.Context) ([]Row, error) {
	if l == nil || l.Endpoint == "" {
		return nil, fmt.Errorf("feed endpoint not configured")
	}
	httpClient := l.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("history feed returned %d: %s", resp.StatusCode, string(raw))
	}
	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode history feed: %w", err)
	}
	return rows, nil
}

// LoadInto fetches, maps and loads the series in one step.
func (l *Loader) LoadInto(ctx context.Context, store *history.Store) error {
	rows, err := l.FetchRows(ctx)
	if err != nil {
		return err
	}
	entries := MapRows(rows, l.Logger)
	store.Load(entries)
	if l.Logger != nil {
		l.Logger.Info("history feed ingested", zap.Int("rows", len(rows)), zap.Int("entries", len(entries)))
	}
	return nil
}
