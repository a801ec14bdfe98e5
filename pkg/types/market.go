package types

import "time"

// CoinSnapshot 持久化层与引擎之间交换的币种快照。
// 可选字段用指针表示，nil 即为"尚未获取"。
type CoinSnapshot struct {
	ID            string     `json:"id"`
	Symbol        *string    `json:"symbol"`
	Price         *float64   `json:"price"`
	PricePrevious *float64   `json:"price_previous"`
	InMessage     bool       `json:"in_message"`
	LastUpdated   *time.Time `json:"last_updated"`
}

// MessageEntry 播报日志条目
type MessageEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
