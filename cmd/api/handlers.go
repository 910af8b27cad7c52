package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"speech-analytics-go/internal/history"
	"speech-analytics-go/internal/logger"
	"speech-analytics-go/internal/pipeline"
	"speech-analytics-go/internal/processor"
	"speech-analytics-go/internal/transcription"
	"speech-analytics-go/internal/types"
)

const maxBody = 8 << 20

type handlers struct {
	engine   *pipeline.Engine
	store    history.Store
	provider transcription.Provider
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// analyze accepts a pipeline.Request as JSON.
func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "analyze")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		reqLog.WithField("error", err.Error()).Warn("bad request body")
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: err.Error()})
		return
	}
	reqLog = reqLog.WithField("comparison_key", req.Key).WithField("segments", len(req.Segments))

	start := time.Now()
	res, err := h.engine.Run(r.Context(), req)
	reqLog = reqLog.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		kind := types.ErrorKind(err)
		status := http.StatusBadRequest
		if kind == "" {
			kind, status = "internal", http.StatusInternalServerError
		}
		reqLog.WithField("error", err.Error()).Warn("analysis rejected")
		writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
		return
	}
	reqLog = reqLog.WithFields(logger.AnalysisFields(res))
	if len(res.Warnings) > 0 {
		reqLog.WithField("warnings", res.Warnings).Warn("analysis completed with warnings")
	} else {
		reqLog.Info("analysis completed")
	}
	writeJSON(w, http.StatusOK, res)
}

// process transcribes ?audio_url= and analyses it under ?key=.
func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "process")
	if h.provider == nil {
		http.Error(w, "transcription not configured", http.StatusServiceUnavailable)
		return
	}
	audioURL := r.URL.Query().Get("audio_url")
	if audioURL == "" {
		reqLog.Warn("missing audio_url")
		http.Error(w, "missing audio_url", http.StatusBadRequest)
		return
	}
	timeoutSec := 40
	if t := r.URL.Query().Get("timeout_sec"); t != "" {
		fmt.Sscanf(t, "%d", &timeoutSec)
	}
	key := r.URL.Query().Get("key")
	reqLog = reqLog.WithField("audio_url", audioURL).WithField("timeout_sec", timeoutSec)

	res, err := processor.ProcessCall(r.Context(), h.provider, h.engine, audioURL, key, time.Duration(timeoutSec)*time.Second)
	reqLog.WithField("duration_ms", res.DurationMs).Info("processor finished")
	status := http.StatusOK
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("processor returned error")
		status = http.StatusInternalServerError
		if res.ErrorKind != "" {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, res)
}

// history lists the stored records for ?key=.
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "history")
	key := pipeline.NormalizeKey(r.URL.Query().Get("key"))
	recs, err := h.store.Fetch(r.Context(), key)
	if err != nil {
		herr := &types.HistoryUnavailableError{Op: "fetch", Key: key, Err: err}
		reqLog.WithField("error", herr.Error()).Error("history fetch failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Kind: herr.Kind(), Message: herr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithError(err).Error("failed to write response")
	}
}
