package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Campus_Hub/internal/config"
	"Campus_Hub/internal/gateway"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"
	"Campus_Hub/internal/repository/redis"
	"Campus_Hub/internal/router"
	"Campus_Hub/internal/service"

	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := pkg.NewLogger(cfg.LogLevel, cfg.LogFormat)
	pkg.SetSecrets(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 连接mysql
	provider := mysql.NewProvider(mysql.Options{
		DSN:         cfg.MySQLDSN,
		MaxOpen:     cfg.MySQLMaxOpen,
		MaxIdle:     cfg.MySQLMaxIdle,
		ConnMaxIdle: cfg.MySQLConnMaxIdle,
	})
	db, err := provider.Open(ctx)
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer provider.Close()

	// 自动建表（开发阶段 OK）
	if err := mysql.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	// 连接redis
	rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	mailer := pkg.NewSMTPMailer(pkg.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	access := service.NewAccessService(db)
	emailSvc := service.NewEmailService(db, rdb, mailer, cfg.AllowedEmailDomains)
	users := service.NewUserService(db, rdb, emailSvc, service.UserOptions{
		AllowedEmailDomains: cfg.AllowedEmailDomains,
		SuperUserEmail:      cfg.SuperUserEmail,
	})
	svcs := router.Services{
		Access:      access,
		Users:       users,
		Email:       emailSvc,
		Communities: service.NewCommunityService(db, access),
		Members:     service.NewMembershipService(db, access),
		Channels:    service.NewChannelService(db, access),
		Messages:    service.NewMessageService(db),
		Threads:     service.NewThreadService(db),
		Degrees:     service.NewDegreeService(db),
	}

	gw := gateway.New(access, svcs.Messages, users, gateway.Options{
		ExcludeSender:  cfg.BroadcastExcludeSender,
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         log,
	})

	// 多实例时经 kafka 转发房间帧
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			log.WithError(err).Fatal("kafka producer")
		}
		defer producer.Close()
		// 每个实例独立消费组，保证都收到全部帧
		instance := uuid.NewString()
		consumer, err := pkg.NewKafkaConsumer(pkg.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: "campus-gateway-" + instance,
		})
		if err != nil {
			log.WithError(err).Fatal("kafka consumer")
		}
		defer consumer.Close()

		bridge := gateway.NewKafkaBridge(instance, gw.Hub(), producer, consumer, log)
		gw.UseBroadcaster(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.WithError(err).Error("kafka bridge stopped")
			}
		}()
	}

	r := router.InitRouter(router.Options{CORSOrigins: cfg.CORSOrigins, Logger: log}, svcs, gw)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	log.Info("bye")
}
