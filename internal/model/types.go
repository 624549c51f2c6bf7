package model

import "time"

type RiskLevel int

const (
	LevelNormal RiskLevel = iota
	LevelElevated
	LevelSevere
)

func (l RiskLevel) String() string {
	switch l {
	case LevelElevated:
		return "elevated"
	case LevelSevere:
		return "severe"
	default:
		return "normal"
	}
}

func ParseRiskLevel(s string) RiskLevel {
	switch s {
	case "elevated", "ELEVATED", "1":
		return LevelElevated
	case "severe", "SEVERE", "2":
		return LevelSevere
	}
	return LevelNormal
}

func MaxLevel(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

type SensorKind string

const (
	KindTemperature SensorKind = "temperature"
	KindHumidity    SensorKind = "humidity"
	KindVibration   SensorKind = "vibration"
	KindCurrent     SensorKind = "current"
	KindParticulate SensorKind = "particulate"
)

type Reading struct {
	ZoneID      string     `json:"zone_id"`
	EquipmentID string     `json:"equipment_id,omitempty"`
	SensorID    string     `json:"sensor_id"`
	SensorKind  SensorKind `json:"sensor_kind"`
	Value       float64    `json:"value"`
	Timestamp   time.Time  `json:"timestamp"`
	DangerLevel RiskLevel  `json:"danger_level"`
}

type WearableReading struct {
	WorkerID    string    `json:"worker_id"`
	DeviceID    string    `json:"device_id"`
	MetricKind  string    `json:"metric_kind"`
	Value       float64   `json:"value"`
	DangerLevel RiskLevel `json:"danger_level"`
	Timestamp   time.Time `json:"timestamp"`
}

type TargetKind string

const (
	TargetSensor    TargetKind = "sensor"
	TargetWorker    TargetKind = "worker"
	TargetEquipment TargetKind = "equipment"
)

// Incident is persisted only when an entity's risk level changes. Immutable
// once created except for the Acknowledged flag.
type Incident struct {
	ID            string     `json:"id"`
	TargetKind    TargetKind `json:"target_kind"`
	TargetID      string     `json:"target_id"`
	ZoneID        string     `json:"zone_id"`
	DangerLevel   RiskLevel  `json:"danger_level"`
	MeasuredValue float64    `json:"measured_value"`
	Description   string     `json:"description"`
	DetectedAt    time.Time  `json:"detected_at"`
	Acknowledged  bool       `json:"acknowledged"`
}

type TriggerKind string

const (
	TriggerAutomatic TriggerKind = "automatic"
	TriggerManual    TriggerKind = "manual"
)

// NotificationRecord is one row of the append-only dispatch audit trail,
// one per channel per dispatch attempt.
type NotificationRecord struct {
	Channel    string      `json:"channel"`
	Target     string      `json:"target"`
	Success    bool        `json:"success"`
	Trigger    TriggerKind `json:"trigger"`
	Timestamp  time.Time   `json:"timestamp"`
	IncidentID string      `json:"incident_id,omitempty"`
}

// Alert is the channel-agnostic payload handed to every notification
// strategy.
type Alert struct {
	IncidentID    string      `json:"incident_id,omitempty"`
	TargetKind    TargetKind  `json:"target_kind"`
	TargetID      string      `json:"target_id"`
	ZoneID        string      `json:"zone_id"`
	Level         RiskLevel   `json:"level"`
	MeasuredValue float64     `json:"measured_value"`
	Message       string      `json:"message"`
	Trigger       TriggerKind `json:"trigger"`
	Timestamp     time.Time   `json:"timestamp"`
}

type DeviceClass string

const (
	DeviceCooling     DeviceClass = "cooling_unit"
	DeviceVentilation DeviceClass = "ventilation"
	DeviceBreaker     DeviceClass = "breaker"
	DeviceNone        DeviceClass = ""
)

type ControlAction struct {
	ZoneID      string      `json:"zone_id"`
	SensorID    string      `json:"sensor_id"`
	SensorKind  SensorKind  `json:"sensor_kind"`
	DeviceClass DeviceClass `json:"device_class"`
	Measured    float64     `json:"measured"`
	Target      float64     `json:"target"`
	Tolerance   float64     `json:"tolerance"`
	IssuedAt    time.Time   `json:"issued_at"`
}

// MaintenanceRecord tracks one predicted service date per equipment. At
// most one open record (ActualDate nil) exists per equipment at a time.
type MaintenanceRecord struct {
	ID            int64      `json:"id"`
	EquipmentID   string     `json:"equipment_id"`
	ZoneID        string     `json:"zone_id"`
	PredictedDate time.Time  `json:"predicted_date"`
	ActualDate    *time.Time `json:"actual_date,omitempty"`
}

type HeatPoint struct {
	ZoneID    string    `json:"zone_id"`
	Kind      string    `json:"kind"`
	Level     RiskLevel `json:"level"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type SensorInfo struct {
	SensorID    string     `json:"sensor_id"`
	Kind        SensorKind `json:"kind"`
	ZoneID      string     `json:"zone_id"`
	EquipmentID string     `json:"equipment_id,omitempty"`
}

// ArtifactRef points at an operating-data file that landed in the artifact
// store. Zone and equipment ids are encoded in the object key.
type ArtifactRef struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ZoneID      string `json:"zone_id,omitempty"`
	EquipmentID string `json:"equipment_id,omitempty"`
}
