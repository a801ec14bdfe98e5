package main

import (
	"log"

	"crypto-ticker-engine/pkg/config"
	"crypto-ticker-engine/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	appLogger := logger.Init(cfg.Log)
	defer func() { _ = appLogger.Sync() }()

	app := NewApp(cfg)
	app.Start()
	app.WaitForShutdown()
	app.Stop()
}
