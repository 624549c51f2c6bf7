package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"siteguard/internal/config"
	"siteguard/internal/pipeline"
)

type RESTServer struct {
	proc   *pipeline.Processor
	logger *slog.Logger
}

// StartREST exposes a direct injection endpoint for readings, used by field
// test rigs and gateways without a broker connection. Accepts a single
// object or an array per POST.
func StartREST(ctx context.Context, cfg *config.Manager, proc *pipeline.Processor, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	server := &RESTServer{proc: proc, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/readings", server.handleReadings)
	mux.HandleFunc("/wearables", server.handleWearables)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *RESTServer) handleReadings(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, func(ctx context.Context, raw json.RawMessage) error {
		reading, err := DecodeReading(raw)
		if err != nil {
			return err
		}
		s.proc.ProcessReading(ctx, reading)
		return nil
	})
}

func (s *RESTServer) handleWearables(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, func(ctx context.Context, raw json.RawMessage) error {
		reading, err := DecodeWearable(raw)
		if err != nil {
			return err
		}
		s.proc.ProcessWearable(ctx, reading)
		return nil
	})
}

func (s *RESTServer) handleBatch(w http.ResponseWriter, r *http.Request, process func(context.Context, json.RawMessage) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	trim := bytesTrim(body)
	if len(trim) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var batch []json.RawMessage
	if trim[0] == '[' {
		if err := json.Unmarshal(trim, &batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		batch = []json.RawMessage{trim}
	}

	accepted := 0
	failed := 0
	for _, raw := range batch {
		if err := process(r.Context(), raw); err != nil {
			if s.logger != nil {
				s.logger.Warn("rest decode error", "err", err)
			}
			failed++
			continue
		}
		accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted": accepted,
		"failed":   failed,
	})
}

func bytesTrim(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\n' || b[start] == '\r' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\r' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
