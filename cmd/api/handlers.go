package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aeolus-energy/turbobot/engine/chat"
	"github.com/aeolus-energy/turbobot/engine/guard"
	"github.com/aeolus-energy/turbobot/engine/memory"
	"github.com/aeolus-energy/turbobot/engine/rag"
	"github.com/aeolus-energy/turbobot/engine/telemetry"
	"github.com/aeolus-energy/turbobot/pkg/metrics"
)

// apiMetrics groups the counters and histograms the handlers update.
type apiMetrics struct {
	chatRequests   *metrics.Counter
	chatRejections *metrics.Counter
	chatFallbacks  *metrics.Counter
	chatDuration   *metrics.Histogram
}

func newAPIMetrics(reg *metrics.Registry) *apiMetrics {
	return &apiMetrics{
		chatRequests:   reg.Counter("turbobot_chat_requests_total", "Total chat requests received"),
		chatRejections: reg.Counter("turbobot_chat_rejections_total", "Chat requests rejected by input guardrails"),
		chatFallbacks:  reg.Counter("turbobot_chat_fallbacks_total", "Chat responses served from telemetry fallback"),
		chatDuration:   reg.Histogram("turbobot_chat_duration_seconds", "Chat request duration", nil),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleHealth(mgr *rag.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"knowledge_ready": mgr.Initialized(),
		})
	}
}

func handleChat(svc *chat.Service, m *apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.chatRequests.Inc()
		start := time.Now()
		defer m.chatDuration.Since(start)

		var req chat.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Ask(r.Context(), req)
		if err != nil {
			logger.Error("chat failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if resp.Rejected {
			m.chatRejections.Inc()
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}
		if resp.Fallback {
			m.chatFallbacks.Inc()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTelemetry(snapshot *telemetry.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"readings": snapshot.Window(),
			"trend":    snapshot.Trend(),
		})
	}
}

func handleTelemetryLatest(snapshot *telemetry.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		latest, ok := snapshot.Latest()
		if !ok {
			writeError(w, http.StatusNotFound, "no telemetry received yet")
			return
		}
		writeJSON(w, http.StatusOK, latest)
	}
}

func handleKnowledgeStats(mgr *rag.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, mgr.Stats())
	}
}

func handleKnowledgeSearch(mgr *rag.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "query parameter q is required")
			return
		}
		topK := rag.DefaultTopK
		if v := r.URL.Query().Get("top_k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				topK = n
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"query":   query,
			"results": mgr.SearchKnowledge(query, topK),
		})
	}
}

func handleKnowledgeReload(mgr *rag.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !mgr.Reload() {
			logger.Error("knowledge reload failed")
			writeError(w, http.StatusInternalServerError, "knowledge reload failed")
			return
		}
		writeJSON(w, http.StatusOK, mgr.Stats())
	}
}

func handleGuardrailStats(filter *guard.Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, filter.Stats())
	}
}

func handleSessionCreate(store *memory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		id, err := store.CreateSession()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not create session")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	}
}

func handleSessionList(store *memory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "" {
			writeJSON(w, http.StatusOK, map[string]any{"messages": store.Search(q)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": store.Sessions()})
	}
}

func handleSessionGet(store *memory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		msgs, ok := store.Conversation(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": msgs})
	}
}

func handleSessionDelete(store *memory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.PathValue("id")); err != nil {
			writeError(w, http.StatusInternalServerError, "could not delete session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
