package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	LogFormat   string            `json:"log_format" yaml:"log_format"`
	Ingest      IngestConfig      `json:"ingest" yaml:"ingest"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify"`
	Control     ControlConfig     `json:"control" yaml:"control"`
	Maintenance MaintenanceConfig `json:"maintenance" yaml:"maintenance"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	API         APIConfig         `json:"api" yaml:"api"`
	Heatmap     HeatmapConfig     `json:"heatmap" yaml:"heatmap"`
	Incidents   IncidentsConfig   `json:"incidents" yaml:"incidents"`
}

type IngestConfig struct {
	Kafka  KafkaConfig  `json:"kafka" yaml:"kafka"`
	REST   RESTConfig   `json:"rest" yaml:"rest"`
	Shadow ShadowConfig `json:"shadow" yaml:"shadow"`
	// HoldingZone is the placeholder zone for workers with no known
	// assignment.
	HoldingZone string `json:"holding_zone" yaml:"holding_zone"`
}

type KafkaConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Brokers        []string `json:"brokers" yaml:"brokers"`
	EquipmentTopic string   `json:"equipment_topic" yaml:"equipment_topic"`
	WearableTopic  string   `json:"wearable_topic" yaml:"wearable_topic"`
	TriggerTopic   string   `json:"trigger_topic" yaml:"trigger_topic"`
	GroupID        string   `json:"group_id" yaml:"group_id"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type ShadowConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Topic    string `json:"topic" yaml:"topic"`
	// CommandTopicPrefix is where autocontrol publishes device commands,
	// suffixed with /<zone>/<device-class>.
	CommandTopicPrefix string `json:"command_topic_prefix" yaml:"command_topic_prefix"`
}

type RedisConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Addr           string `json:"addr" yaml:"addr"`
	Password       string `json:"password" yaml:"password"`
	DB             int    `json:"db" yaml:"db"`
	HeatmapChannel string `json:"heatmap_channel" yaml:"heatmap_channel"`
	UnreadChannel  string `json:"unread_channel" yaml:"unread_channel"`
	AlertChannel   string `json:"alert_channel" yaml:"alert_channel"`
	ControlChannel string `json:"control_channel" yaml:"control_channel"`
}

type NotifyConfig struct {
	Workers   int           `json:"workers" yaml:"workers"`
	QueueSize int           `json:"queue_size" yaml:"queue_size"`
	Push      PushConfig    `json:"push" yaml:"push"`
	Webhook   WebhookConfig `json:"webhook" yaml:"webhook"`
}

type PushConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	// ZoneTokens maps a zone to the device tokens subscribed to it.
	ZoneTokens map[string][]string `json:"zone_tokens" yaml:"zone_tokens"`
	Timeout    time.Duration       `json:"timeout" yaml:"timeout"`
}

type WebhookConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type ControlConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Targets map[string]TargetBand `json:"targets" yaml:"targets"`
	// SensorTargets overrides Targets for individual sensors.
	SensorTargets map[string]TargetBand `json:"sensor_targets" yaml:"sensor_targets"`
}

type TargetBand struct {
	Target    float64 `json:"target" yaml:"target"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

type MaintenanceConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	PredictionURL string        `json:"prediction_url" yaml:"prediction_url"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	FloorDays     int           `json:"floor_days" yaml:"floor_days"`
	AlertDays     []int         `json:"alert_days" yaml:"alert_days"`
	SevereDays    int           `json:"severe_days" yaml:"severe_days"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type HeatmapConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type IncidentsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Ingest: IngestConfig{
			Kafka: KafkaConfig{
				Enabled:        false,
				EquipmentTopic: "telemetry.equipment",
				WearableTopic:  "telemetry.wearable",
				TriggerTopic:   "maintenance.artifacts",
				GroupID:        "siteguard",
			},
			REST: RESTConfig{Enabled: true, Addr: ":8080"},
			Shadow: ShadowConfig{
				Enabled:            false,
				ClientID:           "siteguard",
				Topic:              "shadow/+/update",
				CommandTopicPrefix: "control",
			},
			HoldingZone: "holding-area",
		},
		Redis: RedisConfig{
			Enabled:        false,
			Addr:           "localhost:6379",
			HeatmapChannel: "live:heatmap",
			UnreadChannel:  "live:unread",
			AlertChannel:   "live:alerts",
			ControlChannel: "live:control",
		},
		Notify: NotifyConfig{
			Workers:   10,
			QueueSize: 200,
			Push:      PushConfig{Timeout: 10 * time.Second},
			Webhook:   WebhookConfig{Timeout: 10 * time.Second},
		},
		Control: ControlConfig{Enabled: true},
		Maintenance: MaintenanceConfig{
			Enabled:    false,
			Timeout:    15 * time.Second,
			FloorDays:  5,
			AlertDays:  []int{5, 3},
			SevereDays: 3,
		},
		Storage:   StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:siteguard.db?_pragma=busy_timeout(5000)"},
		API:       APIConfig{Enabled: true, Addr: ":8081"},
		Heatmap:   HeatmapConfig{StoreLimit: 5000},
		Incidents: IncidentsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		applyDefaults(cfg)
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.HoldingZone == "" {
		cfg.Ingest.HoldingZone = "holding-area"
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 10
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 200
	}
	if cfg.Notify.Push.Timeout <= 0 {
		cfg.Notify.Push.Timeout = 10 * time.Second
	}
	if cfg.Notify.Webhook.Timeout <= 0 {
		cfg.Notify.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Maintenance.FloorDays <= 0 {
		cfg.Maintenance.FloorDays = 5
	}
	if len(cfg.Maintenance.AlertDays) == 0 {
		cfg.Maintenance.AlertDays = []int{5, 3}
	}
	if cfg.Maintenance.SevereDays <= 0 {
		cfg.Maintenance.SevereDays = 3
	}
	if cfg.Maintenance.Timeout <= 0 {
		cfg.Maintenance.Timeout = 15 * time.Second
	}
	if cfg.Heatmap.StoreLimit <= 0 {
		cfg.Heatmap.StoreLimit = 5000
	}
	if cfg.Incidents.StoreLimit <= 0 {
		cfg.Incidents.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers and group_id")
		}
		if cfg.Ingest.Kafka.EquipmentTopic == "" && cfg.Ingest.Kafka.WearableTopic == "" {
			return errors.New("ingest.kafka requires at least one of equipment_topic, wearable_topic")
		}
	}
	if cfg.Ingest.Shadow.Enabled && cfg.Ingest.Shadow.Broker == "" {
		return errors.New("ingest.shadow.broker required when ingest.shadow.enabled is true")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis.addr required when redis.enabled is true")
	}
	if cfg.Notify.Push.Enabled && cfg.Notify.Push.URL == "" {
		return errors.New("notify.push.url required when notify.push.enabled is true")
	}
	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL == "" {
		return errors.New("notify.webhook.url required when notify.webhook.enabled is true")
	}
	if cfg.Maintenance.Enabled && cfg.Maintenance.PredictionURL == "" {
		return errors.New("maintenance.prediction_url required when maintenance.enabled is true")
	}
	for kind, band := range cfg.Control.Targets {
		if band.Tolerance < 0 {
			return fmt.Errorf("control.targets[%s].tolerance must be >= 0", kind)
		}
	}
	for id, band := range cfg.Control.SensorTargets {
		if band.Tolerance < 0 {
			return fmt.Errorf("control.sensor_targets[%s].tolerance must be >= 0", id)
		}
	}
	for _, d := range cfg.Maintenance.AlertDays {
		if d <= 0 {
			return fmt.Errorf("maintenance.alert_days contains non-positive day: %d", d)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config, bypassing the filesystem.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	applyDefaults(cfg)
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if m.path == "" {
		return
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
