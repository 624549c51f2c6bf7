package ingest

import (
	"context"
	"testing"

	"siteguard/internal/config"
	"siteguard/internal/pipeline"
	"siteguard/internal/riskstate"
)

func TestStartKafkaToleratesSingleTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := pipeline.New(pipeline.Deps{Aggregator: riskstate.New()})
	for _, cfg := range []config.KafkaConfig{
		{Enabled: true, Brokers: []string{"localhost:9092"}, GroupID: "siteguard", EquipmentTopic: "telemetry.equipment"},
		{Enabled: true, Brokers: []string{"localhost:9092"}, GroupID: "siteguard", WearableTopic: "telemetry.wearable"},
	} {
		manager := config.NewStaticManager(&config.Config{Ingest: config.IngestConfig{Kafka: cfg}})
		StartKafka(ctx, manager, proc, nil)
	}
}

func TestStartTriggerConsumerSkipsEmptyTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manager := config.NewStaticManager(&config.Config{Ingest: config.IngestConfig{Kafka: config.KafkaConfig{
		Enabled: true, Brokers: []string{"localhost:9092"}, GroupID: "siteguard",
	}}})
	StartTriggerConsumer(ctx, manager, nil, nil)
}
