package trade

import (
	"context"
	"math"
	"testing"

	"patternlab/internal/models"
)

func snapshotWith(symbol string, price float64) func() models.AssetSnapshot {
	return func() models.AssetSnapshot {
		return models.AssetSnapshot{symbol: {Symbol: symbol, Price: price}}
	}
}

func TestOpenPositionRecordsTrade(t *testing.T) {
	l := &PaperLedger{Quotes: snapshotWith("ETH", 2000), PositionUSD: 500}
	l.OpenPosition(context.Background(), "eth", models.TradeLong)

	trades := l.ListTrades(context.Background())
	if len(trades) != 1 {
		t.Fatalf("trades=%d want=1", len(trades))
	}
	got := trades[0]
	if got.Asset != "ETH" || got.Status != StatusOpen || got.EntryPrice != 2000 {
		t.Fatalf("trade=%+v", got)
	}
	if got.ID == "" {
		t.Fatalf("missing trade id")
	}
	if got.PnL != nil {
		t.Fatalf("open trade must not carry pnl")
	}
}

func TestOpenPositionUnknownAssetIsDropped(t *testing.T) {
	l := &PaperLedger{Quotes: snapshotWith("ETH", 2000)}
	l.OpenPosition(context.Background(), "ZZZ", models.TradeLong)
	if trades := l.ListTrades(context.Background()); len(trades) != 0 {
		t.Fatalf("trades=%d want=0", len(trades))
	}
}

func TestSettleClosesAgedPositions(t *testing.T) {
	price := 100.0
	l := &PaperLedger{
		Quotes:      func() models.AssetSnapshot { return models.AssetSnapshot{"BTC": {Symbol: "BTC", Price: price}} },
		PositionUSD: 1000,
		HoldFor:     1, // one nanosecond: everything is past its hold
	}
	l.OpenPosition(context.Background(), "BTC", models.TradeLong)
	l.OpenPosition(context.Background(), "BTC", models.TradeShort)

	price = 110
	if closed := l.Settle(context.Background()); closed != 2 {
		t.Fatalf("closed=%d want=2", closed)
	}
	trades := l.ListTrades(context.Background())
	long, short := trades[0], trades[1]
	if long.Status != StatusClosed || short.Status != StatusClosed {
		t.Fatalf("statuses=%s,%s", long.Status, short.Status)
	}
	// 1000 USD at 100 is 10 units; a 10 move is +100 long, -100 short.
	if long.PnL == nil || math.Abs(*long.PnL-100) > 1e-9 {
		t.Fatalf("long pnl=%v want=100", long.PnL)
	}
	if short.PnL == nil || math.Abs(*short.PnL+100) > 1e-9 {
		t.Fatalf("short pnl=%v want=-100", short.PnL)
	}
}

func TestCloseTrade(t *testing.T) {
	l := &PaperLedger{Quotes: snapshotWith("BTC", 100)}
	l.OpenPosition(context.Background(), "BTC", models.TradeLong)
	id := l.ListTrades(context.Background())[0].ID

	if !l.CloseTrade(id, -12.5) {
		t.Fatalf("close failed")
	}
	if l.CloseTrade(id, 1) {
		t.Fatalf("double close must fail")
	}
	got := l.ListTrades(context.Background())[0]
	if got.Status != StatusClosed || got.PnL == nil || *got.PnL != -12.5 {
		t.Fatalf("trade=%+v", got)
	}
}
