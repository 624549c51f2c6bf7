package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"siteguard/internal/alerts"
	"siteguard/internal/config"
	"siteguard/internal/heatmap"
	"siteguard/internal/model"
	"siteguard/internal/riskstate"
	"siteguard/internal/storage"
)

func newTestServer() (*Server, *storage.MemoryStore) {
	store := storage.NewMemory()
	return &Server{
		cfg:        config.NewStaticManager(config.DefaultConfig()),
		aggregator: riskstate.New(),
		heatmap:    heatmap.NewStore(10),
		incidents:  alerts.NewStore(10),
		store:      store,
	}, store
}

func TestSensorsEndpoint(t *testing.T) {
	server, store := newTestServer()
	if err := store.RegisterSensor(context.Background(), model.SensorInfo{
		SensorID: "s1", Kind: model.KindTemperature, ZoneID: "z1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.handleSensors(rec, httptest.NewRequest(http.MethodGet, "/sensors", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Sensors []model.SensorInfo `json:"sensors"`
		Count   int                `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Count != 1 || len(resp.Sensors) != 1 || resp.Sensors[0].SensorID != "s1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = httptest.NewRecorder()
	server.handleSensors(rec, httptest.NewRequest(http.MethodPost, "/sensors", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestAckEndpointFlipsUnread(t *testing.T) {
	server, store := newTestServer()
	inc := model.Incident{ID: "inc-1", TargetKind: model.TargetSensor, TargetID: "s1", ZoneID: "z1", DangerLevel: model.LevelSevere}
	if err := store.SaveIncident(context.Background(), inc); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	server.incidents.Add(inc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/incidents/ack", jsonBody(t, map[string]string{"id": "inc-1"}))
	server.handleAck(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	count, err := store.UnreadIncidents(context.Background())
	if err != nil {
		t.Fatalf("unread query failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread after ack, got %d", count)
	}
}

func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return bytes.NewReader(data)
}
