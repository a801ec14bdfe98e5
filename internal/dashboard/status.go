// Package dashboard 提供仪表盘进程使用的状态展示辅助逻辑。
// 仪表盘的路由和页面渲染不在本仓库内，这里只负责
// "下次更新时间"文案和控制通道错误状态的消费。
package dashboard

import (
	"time"

	"crypto-ticker-engine/internal/control"
	"crypto-ticker-engine/pkg/types"
)

const (
	noUpdateText        = "N/A"
	connectionErrorText = "Connection error, attempting to re-connect"
	timeLayout          = "15:04:05"
)

// Poller 控制通道中仪表盘用到的那部分
type Poller interface {
	Poll() (control.Message, bool)
}

// NextUpdateText 推算下一次更新时间的展示文案。
// 没有币种或没有刷新记录时为 "N/A"；
// 控制通道上有未消费的connection_error时显示降级提示。
func NextUpdateText(coins []types.CoinSnapshot, interval time.Duration, endpoint Poller) string {
	text := noUpdateText

	if len(coins) > 0 && coins[0].LastUpdated != nil {
		next := coins[0].LastUpdated.Add(interval)
		text = next.Format(timeLayout)
	}

	// 非阻塞消费状态消息，connected会清除之前的错误状态
	if endpoint != nil {
		if msg, ok := endpoint.Poll(); ok && msg.Type == control.TypeConnectionError {
			text = connectionErrorText
		}
	}

	return text
}
