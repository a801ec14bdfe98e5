package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"crypto-ticker-engine/internal/coingecko"
	"crypto-ticker-engine/internal/control"
	"crypto-ticker-engine/internal/engine"
	"crypto-ticker-engine/internal/storage"
	"crypto-ticker-engine/pkg/types"
)

// 引擎异常退出后的冷却时间，之后重新进入Bootstrap
const restartCooldown = 10 * time.Second

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动应用程序
func (app *App) Start() {
	zap.L().Info("🚀 Crypto Ticker Engine 启动中...")

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.superviseEngine()
	}()

	zap.L().Info("✅ Crypto Ticker Engine 已启动")
}

// superviseEngine 监督循环：引擎任何不可恢复错误都会被记录，
// 冷却后重建全部连接并重新进入Bootstrap，单次故障不会导致永久停摆。
func (app *App) superviseEngine() {
	for {
		select {
		case <-app.ctx.Done():
			return
		default:
		}

		if err := app.runEngineOnce(); err != nil {
			zap.L().Error("❌ 引擎异常退出，冷却后重启",
				zap.Duration("cooldown", restartCooldown),
				zap.Error(err))

			select {
			case <-app.ctx.Done():
				return
			case <-time.After(restartCooldown):
			}
			continue
		}

		// 正常返回意味着上下文已取消
		return
	}
}

// runEngineOnce 建立一次完整的引擎运行环境并运行到出错或停止
func (app *App) runEngineOnce() error {
	// 存储连接由本进程独占
	store, err := storage.NewManager(app.config.Database.MySQL, app.config.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// 控制通道：仪表盘是监听方，握手带超时避免死锁
	endpoint, err := control.Dial(app.ctx, app.config.Control.Address, app.config.Control.DialTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = endpoint.Close() }()

	source := coingecko.NewClient(app.config.Network)

	eng := engine.New(store, source, endpoint, app.config.Ticker, app.config.Retry)
	return eng.Run(app.ctx)
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Crypto Ticker Engine 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
