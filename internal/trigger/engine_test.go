package trigger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"patternlab/internal/models"
	"patternlab/internal/store"
)

func completedExperiment(id string) models.Experiment {
	return models.Experiment{
		LearningPattern: models.LearningPattern{
			ID:             id,
			Title:          "BTC drift " + id,
			TriggerAsset:   "BTC",
			AffectedAsset:  "ETH",
			TradeDirection: models.TradeLong,
		},
		Status: models.StatusCompleted,
	}
}

func priceCondition(operator string, threshold float64) models.TriggerCondition {
	return models.TriggerCondition{
		Metric:    models.TriggerPriceChange24h,
		Operator:  operator,
		Threshold: threshold,
		Source:    models.SourceAffectedAsset,
	}
}

func newEngine() *Engine {
	return &Engine{Store: store.NewMemoryStore(), Cooldown: time.Hour}
}

func TestPromoteRequiresCompleted(t *testing.T) {
	e := newEngine()
	exp := completedExperiment("s1")
	exp.Status = models.StatusRunning
	if _, err := e.Promote(context.Background(), exp, priceCondition(models.OpGreaterThan, 5)); err != ErrNotCompleted {
		t.Fatalf("err=%v want ErrNotCompleted", err)
	}
	if got := len(e.Signals()); got != 0 {
		t.Fatalf("signals=%d want=0", got)
	}
}

func TestPromoteIsIdempotent(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	exp := completedExperiment("s1")

	first, err := e.Promote(ctx, exp, priceCondition(models.OpGreaterThan, 5))
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if first.ID != "s1" || first.AffectedAsset != "ETH" {
		t.Fatalf("signal=%+v", first)
	}

	second, err := e.Promote(ctx, exp, priceCondition(models.OpLessThan, -5))
	if err != ErrAlreadyPromoted {
		t.Fatalf("err=%v want ErrAlreadyPromoted", err)
	}
	if second.TriggerCondition != first.TriggerCondition {
		t.Fatalf("re-promotion replaced the existing condition")
	}
	if got := len(e.Signals()); got != 1 {
		t.Fatalf("signals=%d want=1", got)
	}
}

func TestEvaluatePriceChangeOperators(t *testing.T) {
	cases := []struct {
		name      string
		operator  string
		threshold float64
		change    float64
		fires     bool
	}{
		{"gt above fires", models.OpGreaterThan, 5, 6.1, true},
		{"gt equal holds", models.OpGreaterThan, 5, 5, false},
		{"gt below holds", models.OpGreaterThan, 5, 4.9, false},
		{"lt below fires", models.OpLessThan, -3, -4, true},
		{"lt above holds", models.OpLessThan, -3, -2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine()
			ctx := context.Background()
			if _, err := e.Promote(ctx, completedExperiment("s1"), priceCondition(tc.operator, tc.threshold)); err != nil {
				t.Fatalf("promote: %v", err)
			}
			snapshot := models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: tc.change}}
			e.Evaluate(ctx, snapshot, nil)

			events := e.Events()
			if tc.fires {
				if len(events) != 1 {
					t.Fatalf("events=%d want=1", len(events))
				}
				if events[0].TriggeredPrice != 2000 || events[0].Signal.ID != "s1" {
					t.Fatalf("event=%+v", events[0])
				}
				return
			}
			if len(events) != 0 {
				t.Fatalf("events=%d want=0", len(events))
			}
		})
	}
}

func TestEvaluateSourceSelectsAsset(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	cond := priceCondition(models.OpGreaterThan, 5)
	cond.Source = models.SourceTriggerAsset
	if _, err := e.Promote(ctx, completedExperiment("s1"), cond); err != nil {
		t.Fatalf("promote: %v", err)
	}
	// Affected asset is flat; only the trigger asset crosses the threshold.
	snapshot := models.AssetSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000, PriceChange24h: 7},
		"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 0},
	}
	e.Evaluate(ctx, snapshot, nil)
	events := e.Events()
	if len(events) != 1 {
		t.Fatalf("events=%d want=1", len(events))
	}
	if events[0].TriggeredPrice != 60000 {
		t.Fatalf("triggered price=%v want trigger-asset quote", events[0].TriggeredPrice)
	}
}

func TestEvaluateUnresolvedAssetSkips(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	if _, err := e.Promote(ctx, completedExperiment("s1"), priceCondition(models.OpGreaterThan, 5)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	e.Evaluate(ctx, models.AssetSnapshot{"SOL": {Symbol: "SOL", Price: 150, PriceChange24h: 10}}, nil)
	if got := len(e.Events()); got != 0 {
		t.Fatalf("events=%d want=0 for unresolved asset", got)
	}
}

func TestEvaluateSentimentScaling(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	cond := models.TriggerCondition{
		Metric:    models.TriggerSentimentScore,
		Operator:  models.OpGreaterThan,
		Threshold: 70,
		Source:    models.SourceGlobal,
	}
	if _, err := e.Promote(ctx, completedExperiment("s1"), cond); err != nil {
		t.Fatalf("promote: %v", err)
	}
	snapshot := models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000}}

	e.Evaluate(ctx, snapshot, &models.SentimentSnapshot{Score: 0.65})
	if got := len(e.Events()); got != 0 {
		t.Fatalf("events=%d want=0 at score 0.65 vs threshold 70", got)
	}

	e.Evaluate(ctx, snapshot, &models.SentimentSnapshot{Score: 0.75})
	events := e.Events()
	if len(events) != 1 {
		t.Fatalf("events=%d want=1 at score 0.75", len(events))
	}
	if events[0].TriggeredPrice != 2000 {
		t.Fatalf("triggered price=%v want affected-asset quote", events[0].TriggeredPrice)
	}

	// Missing sentiment skips the signal rather than treating it as zero.
	e.Evaluate(ctx, snapshot, nil)
	if got := len(e.Events()); got != 1 {
		t.Fatalf("events=%d want=1 when sentiment missing", got)
	}
}

func TestEvaluateCooldownSuppressesRepeats(t *testing.T) {
	e := newEngine()
	e.Cooldown = 50 * time.Millisecond
	ctx := context.Background()
	if _, err := e.Promote(ctx, completedExperiment("s1"), priceCondition(models.OpGreaterThan, 5)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	snapshot := models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 8}}

	e.Evaluate(ctx, snapshot, nil)
	e.Evaluate(ctx, snapshot, nil)
	if got := len(e.Events()); got != 1 {
		t.Fatalf("events=%d want=1 under cooldown", got)
	}

	time.Sleep(60 * time.Millisecond)
	e.Evaluate(ctx, snapshot, nil)
	if got := len(e.Events()); got != 2 {
		t.Fatalf("events=%d want=2 after cooldown elapsed", got)
	}
}

func TestEvaluateEventRetentionCap(t *testing.T) {
	e := newEngine()
	e.EventRetention = 3
	ctx := context.Background()
	snapshot := models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 8}}
	for i := 0; i < 5; i++ {
		exp := completedExperiment(fmt.Sprintf("s%d", i))
		if _, err := e.Promote(ctx, exp, priceCondition(models.OpGreaterThan, 5)); err != nil {
			t.Fatalf("promote: %v", err)
		}
	}
	e.Evaluate(ctx, snapshot, nil)
	if got := len(e.Events()); got != 3 {
		t.Fatalf("events=%d want=3 (retention cap)", got)
	}
}

func TestLoadRestoresPersistedSignals(t *testing.T) {
	kv := store.NewMemoryStore()
	e := &Engine{Store: kv, Cooldown: time.Hour}
	ctx := context.Background()
	if _, err := e.Promote(ctx, completedExperiment("s1"), priceCondition(models.OpGreaterThan, 5)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	e.Evaluate(ctx, models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 8}}, nil)

	restored := &Engine{Store: kv, Cooldown: time.Hour}
	restored.Load(ctx)
	if got := len(restored.Signals()); got != 1 {
		t.Fatalf("signals=%d want=1 after load", got)
	}
	if got := len(restored.Events()); got != 1 {
		t.Fatalf("events=%d want=1 after load", got)
	}
	// Restored events still feed the cooldown check.
	restored.Evaluate(ctx, models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 8}}, nil)
	if got := len(restored.Events()); got != 1 {
		t.Fatalf("events=%d want=1 (cooldown from restored event)", got)
	}
}

func TestSubscribersNotifiedOnceFiring(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	calls := 0
	id := e.Subscribe(func() { calls++ })
	if _, err := e.Promote(ctx, completedExperiment("s1"), priceCondition(models.OpGreaterThan, 5)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d want=1 after promote", calls)
	}

	// A tick with no hits must not notify.
	e.Evaluate(ctx, models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 0}}, nil)
	if calls != 1 {
		t.Fatalf("calls=%d want=1 after quiet tick", calls)
	}

	e.Evaluate(ctx, models.AssetSnapshot{"ETH": {Symbol: "ETH", Price: 2000, PriceChange24h: 8}}, nil)
	if calls != 2 {
		t.Fatalf("calls=%d want=2 after firing tick", calls)
	}

	e.Unsubscribe(id)
}

func TestDescribeCondition(t *testing.T) {
	got := describeCondition(priceCondition(models.OpGreaterThan, 5))
	want := "price_change_24h > 5.00 (affected_asset)"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
}
