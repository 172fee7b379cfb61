package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config 进程级配置，全部来自环境变量
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	MySQLDSN         string        `env:"MYSQL_DSN" envDefault:"user:password@tcp(127.0.0.1:3306)/campus?charset=utf8mb4&parseTime=True&timeout=8s&readTimeout=45s&writeTimeout=45s"`
	MySQLMaxOpen     int           `env:"MYSQL_MAX_OPEN" envDefault:"50"`
	MySQLMaxIdle     int           `env:"MYSQL_MAX_IDLE" envDefault:"5"`
	MySQLConnMaxIdle time.Duration `env:"MYSQL_CONN_MAX_IDLE" envDefault:"60s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CORSOrigins         []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`
	AllowedEmailDomains []string `env:"ALLOWED_EMAIL_DOMAINS" envSeparator:"," envDefault:"city.ac.uk"`
	SuperUserEmail      string   `env:"SUPER_USER_EMAIL"`

	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET" envDefault:"secret-key"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET" envDefault:"refresh-key"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.example.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"Campus Hub <no-reply@example.com>"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"campus.gateway.frames"`

	// 广播时是否跳过发送者本身
	BroadcastExcludeSender bool `env:"BROADCAST_EXCLUDE_SENDER" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load 解析环境变量
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
