package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"siteguard/internal/config"
	"siteguard/internal/model"
	"siteguard/internal/pipeline"
)

// StartKafka launches one consumer per telemetry topic. Each message is
// handed straight to the processor: a decode failure or a processing drop
// consumes the message anyway (at-most-once, duplicates from a rebalance
// are absorbed by the level-transition check).
func StartKafka(ctx context.Context, cfg *config.Manager, proc *pipeline.Processor, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers,
			"equipment_topic", current.EquipmentTopic, "wearable_topic", current.WearableTopic,
			"group_id", current.GroupID)
	}

	if current.EquipmentTopic != "" {
		consume(ctx, newReader(current.Brokers, current.EquipmentTopic, current.GroupID), logger,
			func(msg kafka.Message) {
				r, err := DecodeReading(msg.Value)
				if err != nil {
					if logger != nil {
						logger.Warn("equipment message dropped", "err", err, "offset", msg.Offset)
					}
					return
				}
				proc.ProcessReading(ctx, r)
			})
	}

	if current.WearableTopic != "" {
		consume(ctx, newReader(current.Brokers, current.WearableTopic, current.GroupID), logger,
			func(msg kafka.Message) {
				w, err := DecodeWearable(msg.Value)
				if err != nil {
					if logger != nil {
						logger.Warn("wearable message dropped", "err", err, "offset", msg.Offset)
					}
					return
				}
				proc.ProcessWearable(ctx, w)
			})
	}
}

// StartTriggerConsumer listens for artifact-store notifications that a new
// operating-data file landed and forwards the parsed reference to handle.
func StartTriggerConsumer(ctx context.Context, cfg *config.Manager, handle func(context.Context, model.ArtifactRef), logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled || current.TriggerTopic == "" {
		if logger != nil {
			logger.Info("maintenance trigger consumer disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("maintenance trigger consumer enabled", "topic", current.TriggerTopic)
	}
	consume(ctx, newReader(current.Brokers, current.TriggerTopic, current.GroupID), logger,
		func(msg kafka.Message) {
			ref, err := DecodeArtifactRef(msg.Value)
			if err != nil {
				if logger != nil {
					logger.Warn("trigger message dropped", "err", err, "offset", msg.Offset)
				}
				return
			}
			handle(ctx, ref)
		})
}

func newReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
}

func consume(ctx context.Context, reader *kafka.Reader, logger *slog.Logger, handle func(kafka.Message)) {
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "topic", reader.Config().Topic, "err", err)
				}
				continue
			}
			handle(m)
		}
	}()
}
