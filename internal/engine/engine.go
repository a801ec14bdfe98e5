package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"crypto-ticker-engine/internal/coin"
	"crypto-ticker-engine/internal/coingecko"
	"crypto-ticker-engine/internal/control"
	"crypto-ticker-engine/internal/retry"
	"crypto-ticker-engine/pkg/types"
)

// Store 引擎需要的持久化操作
type Store interface {
	LoadWatchSet() ([]types.CoinSnapshot, error)
	PersistWatchSet([]types.CoinSnapshot) error
	AppendLogEntry(timestamp time.Time, text string) error
	CacheAnnouncement(timestamp time.Time, text string)
}

// PriceSource 行情来源
type PriceSource interface {
	ListAssets(ctx context.Context) ([]coingecko.Asset, error)
	GetSpotPrice(ctx context.Context, assetID, vsCurrency string) (float64, bool, error)
}

// ControlPort 控制通道中引擎用到的那部分
type ControlPort interface {
	Poll() (control.Message, bool)
	NotifyConnected()
	NotifyConnectionError()
}

// Engine 行情更新引擎：读取 → 刷新 → 回写 → 播报 → 可中断等待，
// 单协程驱动，循环直到进程被外部终止。
type Engine struct {
	store      Store
	source     PriceSource
	ctrl       ControlPort
	policy     retry.Policy
	interval   time.Duration
	vsCurrency string
	pollTick   time.Duration

	watch       *coin.WatchSet
	catalog     map[string]string
	override    string
	hasOverride bool
}

// New 创建引擎
func New(store Store, source PriceSource, ctrl ControlPort,
	tickerConfig types.TickerConfig, retryConfig types.RetryConfig) *Engine {
	return &Engine{
		store:      store,
		source:     source,
		ctrl:       ctrl,
		policy:     retry.Policy{Backoff: retryConfig.Backoff, Budget: retryConfig.Budget},
		interval:   tickerConfig.UpdateInterval,
		vsCurrency: tickerConfig.VsCurrency,
		pollTick:   time.Second,
		watch:      coin.NewWatchSet(),
	}
}

// Run 启动引擎并循环执行更新周期。
// 返回错误意味着当前工作单元已不可恢复（重试预算耗尽、持久化失败等），
// 由上层监督循环重启并重新进入Bootstrap。
func (e *Engine) Run(ctx context.Context) error {
	zap.L().Info("🚀 行情引擎启动，获取资产目录...")

	// Bootstrap：资产目录获取一次，瞬时错误只延迟启动，不放弃
	assets, err := retry.Do(ctx, e.policy, e.ctrl, func() ([]coingecko.Asset, error) {
		return e.source.ListAssets(ctx)
	})
	if err != nil {
		return fmt.Errorf("获取资产目录失败: %w", err)
	}

	e.catalog = make(map[string]string, len(assets))
	for _, asset := range assets {
		e.catalog[asset.ID] = asset.Symbol
	}

	zap.L().Info("✅ 引擎就绪，进入更新循环",
		zap.Duration("interval", e.interval),
		zap.String("vs_currency", e.vsCurrency))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("📴 行情引擎已停止")
			return nil
		default:
		}

		if err := e.runCycle(ctx); err != nil {
			return err
		}

		e.wait(ctx)
	}
}

// runCycle 执行一个完整更新周期：Reload → Refresh → Persist → Announce
func (e *Engine) runCycle(ctx context.Context) error {
	// Reload：以持久化层为准就地对账
	records, err := e.store.LoadWatchSet()
	if err != nil {
		return err
	}
	e.watch.Reconcile(records)

	// Refresh：逐个刷新，单个币种找不到价格不影响其他币种
	for _, c := range e.watch.Coins() {
		if err := e.refreshCoin(ctx, c); err != nil {
			return err
		}
	}

	// Persist：一个事务内回写
	if err := e.store.PersistWatchSet(e.watch.Snapshots()); err != nil {
		return err
	}

	// Announce：本周期使用一次性的覆盖消息或派生消息，空消息也入日志
	message := e.watch.Announcement()
	if e.hasOverride {
		message = e.override
		e.hasOverride = false
		e.override = ""
	}

	now := time.Now().UTC()
	if err := e.store.AppendLogEntry(now, message); err != nil {
		return err
	}
	e.store.CacheAnnouncement(now, message)

	zap.L().Info("📢 本周期播报", zap.String("message", message))
	return nil
}

// refreshCoin 刷新单个币种：先补齐symbol，再取现价。
// 交易对不存在是合法终态，价格记为缺失；重试预算耗尽则整个周期失败。
func (e *Engine) refreshCoin(ctx context.Context, c *coin.Coin) error {
	c.ResolveSymbol(e.catalog)

	type spot struct {
		price float64
		found bool
	}

	result, err := retry.Do(ctx, e.policy, e.ctrl, func() (spot, error) {
		price, found, err := e.source.GetSpotPrice(ctx, c.ID(), e.vsCurrency)
		return spot{price: price, found: found}, err
	})
	if err != nil {
		return fmt.Errorf("刷新 %s 价格失败: %w", c.ID(), err)
	}

	now := time.Now().UTC()
	if result.found {
		price := result.price
		c.RecordPrice(&price, now)
	} else {
		c.RecordPrice(nil, now)
		zap.L().Warn("⚠️ 交易对不存在，价格记为缺失",
			zap.String("id", c.ID()),
			zap.String("vs_currency", e.vsCurrency))
	}

	return nil
}

// wait 可中断等待：按tick轮询控制通道，
// request_update 直接结束等待，override 结束等待并在下个周期消费一次。
func (e *Engine) wait(ctx context.Context) {
	ticks := int(e.interval / e.pollTick)
	if ticks < 1 {
		ticks = 1
	}

	for i := 0; i < ticks; i++ {
		if msg, ok := e.ctrl.Poll(); ok {
			switch msg.Type {
			case control.TypeRequestUpdate:
				zap.L().Info("🔄 收到立即刷新请求，提前结束等待")
				return
			case control.TypeOverride:
				if msg.OverrideText != "" {
					e.override = msg.OverrideText
					e.hasOverride = true
				}
				zap.L().Info("📝 收到播报覆盖消息", zap.String("text", msg.OverrideText))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.pollTick):
		}
	}
}
