package main

import (
	"context"

	"Campus_Hub/internal/config"
	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"
	"Campus_Hub/internal/service"
)

// 为每个 institutional-module 社区补齐默认频道
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := pkg.NewLogger(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	provider := mysql.NewProvider(mysql.Options{DSN: cfg.MySQLDSN, MaxOpen: 4})
	db, err := provider.Open(ctx)
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer provider.Close()
	if err := mysql.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	communities := &mysql.CommunityRepository{DB: db}
	channels := service.NewChannelService(db, service.NewAccessService(db))

	list, err := communities.ListByKind(ctx, model.KindInstitutionalModule)
	if err != nil {
		log.WithError(err).Fatal("list communities")
	}
	var total int64
	for _, c := range list {
		n, err := channels.EnsureDefaultChannels(ctx, c.ID)
		if err != nil {
			log.WithError(err).WithField("community_id", c.ID).Error("seed channels")
			continue
		}
		total += n
	}
	log.WithField("communities", len(list)).WithField("created", total).Info("seed done")
}
