package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"siteguard/internal/model"
)

// DecodeArtifactRef parses an artifact-store bucket notification. The
// object key carries hive-style partition segments, e.g.
// "operating/zone_id=z1/equip_id=mixer-4/2026-08-30.parquet".
func DecodeArtifactRef(data []byte) (model.ArtifactRef, error) {
	var payload struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return model.ArtifactRef{}, err
	}
	if payload.Key == "" {
		return model.ArtifactRef{}, fmt.Errorf("bucket notification missing key")
	}
	ref := model.ArtifactRef{Bucket: payload.Bucket, Key: payload.Key}
	for _, segment := range strings.Split(payload.Key, "/") {
		if v, ok := strings.CutPrefix(segment, "zone_id="); ok {
			ref.ZoneID = v
		}
		if v, ok := strings.CutPrefix(segment, "equip_id="); ok {
			ref.EquipmentID = v
		}
	}
	if ref.EquipmentID == "" {
		return model.ArtifactRef{}, fmt.Errorf("bucket notification key %q missing equip_id segment", payload.Key)
	}
	return ref, nil
}
