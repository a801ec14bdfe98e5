package types

import "time"

// Config 主配置结构
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ticker   TickerConfig   `mapstructure:"ticker"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Control  ControlConfig  `mapstructure:"control"`
	Network  NetworkConfig  `mapstructure:"network"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis配置（可选，用于缓存最新播报内容）
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TickerConfig 行情刷新配置
type TickerConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"` // 刷新周期
	VsCurrency     string        `mapstructure:"vs_currency"`     // 计价货币，如 usd
}

// RetryConfig 重试策略配置
type RetryConfig struct {
	Backoff time.Duration `mapstructure:"backoff"` // 每次重试前的等待时间
	Budget  time.Duration `mapstructure:"budget"`  // 重试总时间预算，超出后放弃
}

// ControlConfig 控制通道配置
type ControlConfig struct {
	Address     string        `mapstructure:"address"`      // 仪表盘监听地址，如 localhost:6000
	DialTimeout time.Duration `mapstructure:"dial_timeout"` // 启动握手超时
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}
