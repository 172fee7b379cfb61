package mysql

import (
	"context"
	"errors"
	"sync"
	"time"

	"Campus_Hub/internal/model"

	gmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	ConnMaxIdle time.Duration
	// Dialector 非空时替代 DSN，测试里注入 sqlite
	Dialector gorm.Dialector
	LogLevel  logger.LogLevel
}

// Provider 连接只建立一次，并发的首次 Open 共享同一个 *gorm.DB
type Provider struct {
	opts Options

	mu sync.Mutex
	db *gorm.DB
}

func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts}
}

func (p *Provider) Open(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}

	dial := p.opts.Dialector
	if dial == nil {
		if p.opts.DSN == "" {
			return nil, errors.New("mysql dsn required")
		}
		dial = gmysql.Open(p.opts.DSN)
	}
	lvl := p.opts.LogLevel
	if lvl == 0 {
		lvl = logger.Warn
	}
	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(lvl),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if p.opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(p.opts.MaxOpen)
	}
	if p.opts.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(p.opts.MaxIdle)
	}
	if p.opts.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(p.opts.ConnMaxIdle)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	p.db = db
	return db, nil
}

// Close 关闭连接池，之后可再次 Open
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	p.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate 自动建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Community{},
		&model.Membership{},
		&model.Channel{},
		&model.ChannelAccess{},
		&model.Thread{},
		&model.Message{},
		&model.Degree{},
		&model.CourseModule{},
		&model.DegreeModule{},
	)
}
