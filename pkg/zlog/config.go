package zlog

import (
	"fmt"

	"github.com/spf13/viper"
)

// FileConfig 本地日志文件轮转策略
type FileConfig struct {
	Path       string `mapstructure:"path"`        // 日志文件路径，留空则不写文件
	MaxSizeMB  int    `mapstructure:"max_size"`    // 单个文件最大容量（MB）
	MaxBackups int    `mapstructure:"max_backups"` // 保留旧文件数量
	MaxAgeDay  int    `mapstructure:"max_age"`     // 最长保存天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// Config 日志配置，从应用配置文件的 log 段加载
type Config struct {
	Service      string     `mapstructure:"service"`       // 归属服务名
	Level        string     `mapstructure:"level"`         // debug|info|warn|error
	Encoding     string     `mapstructure:"encoding"`      // json|console
	Stdout       bool       `mapstructure:"stdout"`        // 是否同时输出到控制台
	File         FileConfig `mapstructure:"file"`          // 文件输出配置
	EnableMetric bool       `mapstructure:"enable_metric"` // 是否上报 Prometheus 指标
}

// LoadConfig 从配置文件的 log 段加载日志配置
func LoadConfig(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	// 配置项缺失时回退到 ZLOG_ 前缀的环境变量
	v.AutomaticEnv()
	v.SetEnvPrefix("ZLOG")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read log config: %w", err)
	}

	v.SetDefault("log.service", "messaging-service")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 30)
	v.SetDefault("log.file.max_age", 7)
	v.SetDefault("log.enable_metric", true)

	var cfg Config
	if err := v.UnmarshalKey("log", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal log config: %w", err)
	}

	if cfg.Service == "" {
		cfg.Service = "messaging-service"
	}

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log config: level must be debug/info/warn/error, got %q", cfg.Level)
	}

	switch cfg.Encoding {
	case "json", "console":
	default:
		return nil, fmt.Errorf("log config: encoding must be json/console, got %q", cfg.Encoding)
	}

	if !cfg.Stdout && cfg.File.Path == "" {
		return nil, fmt.Errorf("log config: file.path is required when stdout is disabled")
	}

	if cfg.File.Path != "" {
		if cfg.File.MaxSizeMB <= 0 {
			cfg.File.MaxSizeMB = 100
		}
		if cfg.File.MaxBackups < 0 {
			cfg.File.MaxBackups = 30
		}
		if cfg.File.MaxAgeDay < 0 {
			cfg.File.MaxAgeDay = 7
		}
	}

	return &cfg, nil
}
