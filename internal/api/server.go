package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"siteguard/internal/alerts"
	"siteguard/internal/broadcast"
	"siteguard/internal/config"
	"siteguard/internal/heatmap"
	"siteguard/internal/model"
	"siteguard/internal/notify"
	"siteguard/internal/riskstate"
	"siteguard/internal/storage"
)

type Server struct {
	cfg         *config.Manager
	aggregator  *riskstate.Aggregator
	heatmap     *heatmap.Store
	incidents   *alerts.Store
	store       storage.Store
	dispatcher  *notify.Dispatcher
	broadcaster *broadcast.Broadcaster
	hub         *broadcast.Hub
	logger      *slog.Logger
	version     string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Ingest     ingestStatus `json:"ingest"`
	Clients    int          `json:"ws_clients"`
}

type ingestStatus struct {
	REST   bool `json:"rest"`
	Kafka  bool `json:"kafka"`
	Shadow bool `json:"shadow"`
}

type Deps struct {
	Config      *config.Manager
	Aggregator  *riskstate.Aggregator
	Heatmap     *heatmap.Store
	Incidents   *alerts.Store
	Store       storage.Store
	Dispatcher  *notify.Dispatcher
	Broadcaster *broadcast.Broadcaster
	Hub         *broadcast.Hub
	Logger      *slog.Logger
	Version     string
}

func Start(ctx context.Context, deps Deps) *http.Server {
	if deps.Config == nil {
		return nil
	}
	current := deps.Config.Get().API
	if !current.Enabled {
		if deps.Logger != nil {
			deps.Logger.Info("api disabled")
		}
		return nil
	}
	if deps.Logger != nil {
		deps.Logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:         deps.Config,
		aggregator:  deps.Aggregator,
		heatmap:     deps.Heatmap,
		incidents:   deps.Incidents,
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		hub:         deps.Hub,
		logger:      deps.Logger,
		version:     deps.Version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/zones", server.handleZones)
	mux.HandleFunc("/zones/", server.handleZone)
	mux.HandleFunc("/heatmap", server.handleHeatmap)
	mux.HandleFunc("/heatmap/", server.handleHeatmap)
	mux.HandleFunc("/sensors", server.handleSensors)
	mux.HandleFunc("/incidents", server.handleIncidents)
	mux.HandleFunc("/incidents/ack", server.handleAck)
	mux.HandleFunc("/notify/test", server.handleNotifyTest)
	if server.hub != nil {
		mux.Handle("/ws", server.hub)
	}

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if deps.Logger != nil {
				deps.Logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	clients := 0
	if s.hub != nil {
		clients = s.hub.Count()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Ingest: ingestStatus{
			REST:   cfg.Ingest.REST.Enabled,
			Kafka:  cfg.Ingest.Kafka.Enabled,
			Shadow: cfg.Ingest.Shadow.Enabled,
		},
		Clients: clients,
	})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	zones := s.aggregator.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": zones,
		"count": len(zones),
	})
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	zone := strings.TrimPrefix(r.URL.Path, "/zones/")
	if zone == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zone_id": zone,
		"level":   s.aggregator.GroupLevel(zone),
		"members": s.aggregator.Members(zone),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	zone := strings.TrimPrefix(r.URL.Path, "/heatmap")
	zone = strings.TrimPrefix(zone, "/")
	if zone != "" {
		points, updated, ok := s.heatmap.Get(zone)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"zone_id":    zone,
			"updated_at": updated.Format(time.RFC3339Nano),
			"points":     points,
		})
		return
	}
	all := s.heatmap.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": all,
		"count": len(all),
	})
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sensors, err := s.store.ListSensors(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("sensor list query failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": sensors,
		"count":   len(sensors),
	})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Incident
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.incidents.Since(ts)
	} else {
		list = s.incidents.List(limit)
	}
	unread := 0
	if s.store != nil {
		if n, err := s.store.UnreadIncidents(r.Context()); err == nil {
			unread = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": list,
		"count":     len(list),
		"unread":    unread,
	})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.store.AckIncident(r.Context(), req.ID); err != nil {
		if s.logger != nil {
			s.logger.Warn("incident ack failed", "incident_id", req.ID, "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.incidents.Ack(req.ID)
	if s.broadcaster != nil {
		if count, err := s.store.UnreadIncidents(r.Context()); err == nil {
			s.broadcaster.UnreadCount(r.Context(), count)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": req.ID})
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ZoneID  string `json:"zone_id"`
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		req.Message = "test notification"
	}
	level := model.ParseRiskLevel(req.Level)
	s.dispatcher.Dispatch(r.Context(), model.Alert{
		TargetKind: model.TargetSensor,
		TargetID:   "test",
		ZoneID:     req.ZoneID,
		Level:      level,
		Message:    req.Message,
		Trigger:    model.TriggerManual,
		Timestamp:  time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"dispatched": true,
		"level":      level.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
