package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
	"crypto-ticker-engine/pkg/types"
)

// Load 加载配置
func Load() (*types.Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	setDefaults()

	// 读取环境变量
	viper.AutomaticEnv()

	// 优先尝试读取本地配置文件
	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	var config types.Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file_path", "logs")
	viper.SetDefault("log.max_size", 200)
	viper.SetDefault("log.max_age", 30)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.username", "root")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "crypto_ticker")
	viper.SetDefault("database.mysql.max_idle_conns", 5)
	viper.SetDefault("database.mysql.max_open_conns", 20)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ticker.update_interval", time.Minute)
	viper.SetDefault("ticker.vs_currency", "usd")
	viper.SetDefault("retry.backoff", 10*time.Second)
	viper.SetDefault("retry.budget", 2*time.Minute)
	viper.SetDefault("control.address", "localhost:6000")
	viper.SetDefault("control.dial_timeout", 30*time.Second)
	viper.SetDefault("network.proxy", "")
	viper.SetDefault("network.timeout", 30*time.Second)
}
