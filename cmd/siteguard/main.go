package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"siteguard/internal/alerts"
	"siteguard/internal/api"
	"siteguard/internal/autocontrol"
	"siteguard/internal/broadcast"
	"siteguard/internal/config"
	"siteguard/internal/heatmap"
	"siteguard/internal/ingest"
	"siteguard/internal/logging"
	"siteguard/internal/maintenance"
	"siteguard/internal/model"
	"siteguard/internal/mqtt"
	"siteguard/internal/notify"
	"siteguard/internal/pipeline"
	"siteguard/internal/riskstate"
	"siteguard/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (json or yaml)")
	flag.Parse()

	manager, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.Get()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("siteguard starting", "version", version, "config", manager.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage open failed", "err", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	var shadowClient *mqtt.Client
	if cfg.Ingest.Shadow.Enabled {
		shadowClient, err = mqtt.NewClient(cfg.Ingest.Shadow, logger)
		if err != nil {
			logger.Error("mqtt connect failed", "broker", cfg.Ingest.Shadow.Broker, "err", err)
			os.Exit(1)
		}
		defer shadowClient.Disconnect()
	}

	aggregator := riskstate.New()
	incidentStore := alerts.NewStore(cfg.Incidents.StoreLimit)
	heatStore := heatmap.NewStore(cfg.Heatmap.StoreLimit)

	hub := broadcast.NewHub()
	defer hub.Close()
	hub.SetInitial(func() []byte {
		data, err := json.Marshal(broadcast.Envelope{Event: "snapshot", Data: map[string]any{
			"zones":     aggregator.Snapshot(),
			"heatmap":   heatStore.GetAll(),
			"incidents": incidentStore.List(50),
		}})
		if err != nil {
			return nil
		}
		return data
	})
	broadcaster := broadcast.New(cfg.Redis, redisClient, hub, logger)

	registry := notify.NewRegistry(notify.NewLiveFeed(broadcaster))
	if cfg.Notify.Push.Enabled {
		registry.Register(notify.NewMobilePush(cfg.Notify.Push))
	}
	if cfg.Notify.Webhook.Enabled {
		registry.Register(notify.NewChatWebhook(cfg.Notify.Webhook))
	}
	dispatcher := notify.NewDispatcher(registry, store, logger)

	var commandPublisher autocontrol.CommandPublisher
	if shadowClient != nil {
		commandPublisher = shadowClient
	}
	evaluator := autocontrol.New(cfg.Control, cfg.Ingest.Shadow.CommandTopicPrefix,
		commandPublisher, store, broadcaster, logger)

	var resolver pipeline.AssignmentResolver
	if redisClient != nil {
		resolver = pipeline.NewRedisResolver(redisClient)
	}
	processor := pipeline.New(pipeline.Deps{
		Aggregator:  aggregator,
		Store:       store,
		Incidents:   incidentStore,
		Heatmap:     heatStore,
		Dispatcher:  dispatcher,
		Control:     evaluator,
		Broadcaster: broadcaster,
		Resolver:    resolver,
		HoldingZone: cfg.Ingest.HoldingZone,
		Logger:      logger,
	})
	processor.Start(ctx, cfg.Notify.Workers, cfg.Notify.QueueSize)

	ingest.StartKafka(ctx, manager, processor, logger)
	ingest.StartREST(ctx, manager, processor, logger)
	if err := ingest.StartShadow(ctx, shadowClient, cfg.Ingest.Shadow.Topic, store, logger); err != nil {
		logger.Error("shadow subscribe failed", "err", err)
		os.Exit(1)
	}

	if cfg.Maintenance.Enabled {
		reconciler := maintenance.NewReconciler(cfg.Maintenance, maintenance.NewClient(cfg.Maintenance),
			store, incidentStore, dispatcher, broadcaster, logger)
		ingest.StartTriggerConsumer(ctx, manager, func(ctx context.Context, ref model.ArtifactRef) {
			if err := reconciler.Reconcile(ctx, ref); err != nil {
				logger.Warn("maintenance reconcile failed", "equipment_id", ref.EquipmentID, "err", err)
			}
		}, logger)
	}

	api.Start(ctx, api.Deps{
		Config:      manager,
		Aggregator:  aggregator,
		Heatmap:     heatStore,
		Incidents:   incidentStore,
		Store:       store,
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
		Hub:         hub,
		Logger:      logger,
		Version:     version,
	})

	stopWatch := make(chan struct{})
	go manager.Watch(10*time.Second, func(updated *config.Config) {
		logger.Info("config reloaded", "path", manager.Path())
	}, func(err error) {
		logger.Warn("config reload failed", "err", err)
	}, stopWatch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())
	close(stopWatch)
	cancel()
	time.Sleep(200 * time.Millisecond)
}
