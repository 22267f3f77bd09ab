package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/config"
	redis_wrapper "github.com/x5500/QUIKSharp-sub001/pkg/infra/redis"
	kafkawrapper "github.com/x5500/QUIKSharp-sub001/pkg/kafka_wrapper"
	"github.com/x5500/QUIKSharp-sub001/pkg/logging"
	"github.com/x5500/QUIKSharp-sub001/pkg/quik"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader"
	candlestore "github.com/x5500/QUIKSharp-sub001/pkg/trader/candle_store"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	go func() {
		http.ListenAndServe("localhost:6060", nil)
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	undo := logging.InitGlobal(cfg.ServiceName, logging.INFO)
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := quik.NewTransport(cfg.Quik)
	transport.Start()

	blockSize := cfg.Quik.IDBlockSize
	if blockSize <= 0 {
		blockSize = 1
	}
	ids := quik.NewAllocator(&quik.TransportCounter{Transport: transport}, blockSize)

	var publisher trader.EventPublisher
	if cfg.Kafka != nil {
		producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		publisher = trader.NewKafkaPublisher(producer, cfg.Kafka.LifecycleTopic)
	}

	engine := trader.New(transport, ids, nil, publisher)
	engine.Bind(transport.Events())

	if cfg.Redis != nil {
		redisClient, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			zap.S().Fatalf("init redis fail: %v", err)
		}
		var depth int64
		if cfg.Candles != nil {
			depth = cfg.Candles.Depth
		}
		candlestore.New(redisClient, depth).Bind(transport.Events())
	}

	zap.S().Info("trader started")
	<-ctx.Done()
	zap.S().Info("shutting down...")

	transport.Stop()
	zap.S().Info("exited cleanly")
}
