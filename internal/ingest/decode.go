package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"siteguard/internal/model"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// DecodeReading accepts the loose JSON the gateways actually emit: field
// names vary by firmware generation, timestamps come as unix seconds,
// milliseconds or RFC3339.
func DecodeReading(data []byte) (model.Reading, error) {
	fields, err := parseFields(data)
	if err != nil {
		return model.Reading{}, err
	}
	r := model.Reading{
		ZoneID:      fields.first("zone_id", "zone", "zoneid"),
		EquipmentID: fields.first("equipment_id", "equipment", "equip_id", "equipid"),
		SensorID:    fields.first("sensor_id", "sensor", "sensorid", "device_id"),
		SensorKind:  model.SensorKind(fields.first("sensor_kind", "kind", "type", "metric")),
		Value:       fields.number("value", "reading", "measurement"),
		DangerLevel: model.ParseRiskLevel(fields.first("danger_level", "level")),
	}
	if r.SensorID == "" {
		return model.Reading{}, fmt.Errorf("reading missing sensor id")
	}
	r.Timestamp = fields.timestamp()
	return r, nil
}

func DecodeWearable(data []byte) (model.WearableReading, error) {
	fields, err := parseFields(data)
	if err != nil {
		return model.WearableReading{}, err
	}
	w := model.WearableReading{
		WorkerID:    fields.first("worker_id", "worker", "workerid", "user_id"),
		DeviceID:    fields.first("device_id", "device", "deviceid", "wearable_id"),
		MetricKind:  fields.first("metric_kind", "metric", "kind", "type"),
		Value:       fields.number("value", "reading", "measurement"),
		DangerLevel: model.ParseRiskLevel(fields.first("danger_level", "level", "status")),
	}
	if w.WorkerID == "" {
		return model.WearableReading{}, fmt.Errorf("wearable reading missing worker id")
	}
	w.Timestamp = fields.timestamp()
	return w, nil
}

type eventFields map[string]string

// parseFields flattens the payload to strings. Numbers are decoded as
// json.Number so a numeric timestamp keeps its digits instead of turning
// into scientific notation.
func parseFields(data []byte) (eventFields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	fields := make(eventFields, len(obj))
	for key, val := range obj {
		fields[strings.ToLower(key)] = fmt.Sprint(val)
	}
	return fields, nil
}

func (f eventFields) first(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(f[key]); v != "" {
			return v
		}
	}
	return ""
}

func (f eventFields) number(keys ...string) float64 {
	raw := f.first(keys...)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func (f eventFields) timestamp() time.Time {
	raw := f.first("timestamp", "time", "ts", "recorded_at")
	if raw == "" {
		return time.Time{}
	}
	if t, err := ParseTimestamp(raw); err == nil {
		return t
	}
	return time.Time{}
}

func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if isNumeric(value) {
		return parseUnix(value)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
