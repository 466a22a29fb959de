package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/admission"
	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/output"
	"streamcaption/packages/go/backend/session"
	"streamcaption/packages/go/backend/status"
)

type api struct {
	controller *admission.Controller
	engine     asr.Engine
	logger     *zap.SugaredLogger
}

// engineHealth is implemented by engines that are built on demand.
type engineHealth interface {
	Health() asr.HealthStatus
}

func newRouter(controller *admission.Controller, engine asr.Engine, logger *zap.SugaredLogger) http.Handler {
	a := &api{controller: controller, engine: engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/start", a.startHandler)
	mux.HandleFunc("POST /api/stop", a.stopHandler)
	mux.HandleFunc("GET /api/recent", a.recentHandler)
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /healthz", a.healthHandler)
	mux.HandleFunc("GET /ws", a.websocketHandler)
	return mux
}

func (a *api) startHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := r.Body.Close(); err != nil {
			a.logger.Errorw("failed to close request body", "error", err)
		}
	}()

	var req admission.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, a.logger, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	outcome, err := a.controller.RequestStart(r.Context(), req)
	switch {
	case errors.Is(err, admission.ErrInvalidRequest):
		writeError(w, a.logger, http.StatusBadRequest, errors.New(startErrorMessage(req, err)))
		return
	case errors.Is(err, admission.ErrConflict):
		writeError(w, a.logger, http.StatusConflict, errors.New(status.MsgConflict))
		return
	case err != nil:
		writeError(w, a.logger, http.StatusInternalServerError, err)
		return
	}

	state := "starting"
	if outcome == admission.Joined {
		state = "already running"
	}
	writeJSON(w, a.logger, http.StatusOK, map[string]any{"ok": true, "status": state})
}

func (a *api) stopHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.RequestStop(); err != nil {
		writeError(w, a.logger, http.StatusBadRequest, errors.New(status.MsgNoActive))
		return
	}
	writeJSON(w, a.logger, http.StatusOK, map[string]any{"ok": true})
}

type recentResponse struct {
	Active   bool          `json:"active"`
	Recent   []session.Cue `json:"recent"`
	LastText string        `json:"last_text"`
}

func (a *api) recentHandler(w http.ResponseWriter, r *http.Request) {
	active, cues, lastText := a.controller.Recent()
	if cues == nil {
		cues = []session.Cue{}
	}

	if raw := r.URL.Query().Get("format"); raw != "" {
		format, err := output.ParseFormat(raw)
		if err != nil {
			writeError(w, a.logger, http.StatusBadRequest, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "captions."+string(format)))
		if err := output.Write(w, format, cues); err != nil {
			a.logger.Errorw("failed to write subtitles", "error", err)
		}
		return
	}

	writeJSON(w, a.logger, http.StatusOK, recentResponse{Active: active, Recent: cues, LastText: lastText})
}

type healthResponse struct {
	OK          bool   `json:"ok"`
	Active      bool   `json:"active"`
	URL         string `json:"url"`
	Subscribers int    `json:"subscribers"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (a *api) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap, active := a.controller.Active()
	writeJSON(w, a.logger, http.StatusOK, healthResponse{
		OK:          true,
		Active:      active,
		URL:         snap.StreamRef,
		Subscribers: a.controller.Subscribers(),
		ModelLoaded: a.modelLoaded(),
	})
}

func (a *api) modelLoaded() bool {
	if a.engine == nil {
		return false
	}
	if h, ok := a.engine.(engineHealth); ok {
		return h.Health().ModelLoaded
	}
	return true
}

// startErrorMessage is the client-facing text for a rejected start.
func startErrorMessage(req admission.StartRequest, err error) string {
	switch {
	case errors.Is(err, admission.ErrInvalidRequest) && strings.TrimSpace(req.URL) == "":
		return status.MsgMissingURL
	case errors.Is(err, admission.ErrConflict):
		return status.MsgConflict
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, code int, err error) {
	writeJSON(w, logger, code, map[string]string{"error": err.Error()})
}
