package models

import "time"

// Metrics a trigger condition may watch.
const (
	TriggerPriceChange24h = "price_change_24h"
	TriggerSentimentScore = "sentiment_score"
)

// Sources a trigger condition may resolve its metric against.
const (
	SourceTriggerAsset  = "trigger_asset"
	SourceAffectedAsset = "affected_asset"
	SourceGlobal        = "global"
)

// TriggerCondition is the declarative firing rule attached to an activated
// signal. The concrete threshold is policy supplied by the promoter.
type TriggerCondition struct {
	Metric    string  `json:"metric"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
	Source    string  `json:"source"`
}

// AvailableSignal is a completed, profitable experiment re-armed to fire on
// live data. One signal per experiment id.
type AvailableSignal struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	TriggerAsset     string           `json:"trigger_asset"`
	AffectedAsset    string           `json:"affected_asset"`
	TradeDirection   string           `json:"trade_direction"`
	TriggerCondition TriggerCondition `json:"trigger_condition"`
}

// SignalEvent records one firing of an activated signal. Events are retained
// most-recent-first up to a fixed cap.
type SignalEvent struct {
	EventID        string          `json:"event_id"`
	Signal         AvailableSignal `json:"signal"`
	TriggeredPrice float64         `json:"triggered_price"`
	TriggeredAt    time.Time       `json:"triggered_at"`
}
