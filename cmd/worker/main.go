package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/config"
	postgres_wrapper "github.com/x5500/QUIKSharp-sub001/pkg/infra/postgres"
	kafkawrapper "github.com/x5500/QUIKSharp-sub001/pkg/kafka_wrapper"
	"github.com/x5500/QUIKSharp-sub001/pkg/logging"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/repo"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/worker"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	undo := logging.InitGlobal(cfg.ServiceName, logging.INFO)
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := postgres_wrapper.InitPostgresWithBackoff(cfg.JournalDB)
	sqlRepo := repo.NewRepo(db)

	consumerCfg := kafkawrapper.ConsumerConfig{}
	if cfg.Kafka.Consumer != nil {
		consumerCfg = *cfg.Kafka.Consumer
	}
	consumerCfg.Brokers = cfg.Kafka.Brokers
	if consumerCfg.Topic == "" {
		consumerCfg.Topic = cfg.Kafka.LifecycleTopic
	}
	if consumerCfg.GroupID == "" {
		consumerCfg.GroupID = "lifecycle_worker"
	}

	cg, err := kafkawrapper.NewConsumerGroup(consumerCfg)
	if err != nil {
		zap.S().Fatalf("init consumer fail: %v", err)
	}
	defer cg.Close()

	zap.S().Infow("worker started", "topic", consumerCfg.Topic, "group", consumerCfg.GroupID)

	w := worker.NewWorker(sqlRepo)
	if err := w.Run(ctx, cg); err != nil && err != context.Canceled {
		zap.S().Errorf("worker stopped with err: %v", err)
	}
	zap.S().Info("exited cleanly")
}
