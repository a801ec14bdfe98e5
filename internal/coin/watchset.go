package coin

import (
	"strings"

	"crypto-ticker-engine/pkg/types"
)

// WatchSet 当前跟踪的币种集合，顺序跟随持久化层返回的顺序。
type WatchSet struct {
	coins []*Coin
}

// NewWatchSet 创建空集合
func NewWatchSet() *WatchSet {
	return &WatchSet{}
}

// Reconcile 用持久化层的记录就地对账：
// 已存在的币种按id原地更新（保留内存中的price_previous连续性），
// 新增的币种追加，数据库中已删除的币种不再保留。
func (ws *WatchSet) Reconcile(records []types.CoinSnapshot) {
	existing := make(map[string]*Coin, len(ws.coins))
	for _, c := range ws.coins {
		existing[c.ID()] = c
	}

	next := make([]*Coin, 0, len(records))
	for _, record := range records {
		if c, ok := existing[record.ID]; ok {
			c.SetSymbol(record.Symbol)
			c.SetPrice(record.Price, record.PricePrevious)
			c.SetInMessage(record.InMessage)
			c.SetLastUpdated(record.LastUpdated)
			next = append(next, c)
			continue
		}
		next = append(next, FromSnapshot(record))
	}

	ws.coins = next
}

// Coins 返回集合内容，调用方不得打乱顺序
func (ws *WatchSet) Coins() []*Coin {
	return ws.coins
}

// Len 集合大小
func (ws *WatchSet) Len() int {
	return len(ws.coins)
}

// Snapshots 导出全部快照，用于持久化
func (ws *WatchSet) Snapshots() []types.CoinSnapshot {
	snaps := make([]types.CoinSnapshot, 0, len(ws.coins))
	for _, c := range ws.coins {
		snaps = append(snaps, c.Snapshot())
	}
	return snaps
}

// Announcement 生成播报字符串，如 "BTC-123.12 TRX-0.98"。
// 只包含 in_message 且 symbol、price 均已解析的币种，单空格分隔。
func (ws *WatchSet) Announcement() string {
	parts := make([]string, 0, len(ws.coins))

	for _, c := range ws.coins {
		if !c.InMessage() || c.Symbol() == nil || c.Price() == nil {
			continue
		}

		priceStr, err := FormatPrice(*c.Price())
		if err != nil {
			continue
		}
		parts = append(parts, strings.ToUpper(*c.Symbol())+"-"+priceStr)
	}

	return strings.Join(parts, " ")
}
