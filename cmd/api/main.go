package main

import (
	"fmt"
	"net/http"
	"time"

	"speech-analytics-go/internal/config"
	"speech-analytics-go/internal/logger"
	"speech-analytics-go/internal/narrator"
	"speech-analytics-go/internal/observe"
	"speech-analytics-go/internal/pipeline"
	"speech-analytics-go/internal/transcription"
)

func main() {
	conf, err := config.Load()
	log := logger.New()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.WithField("service", "speech-analytics-go").Info("starting service")

	store, closer, err := conf.OpenHistory()
	if err != nil {
		log.WithError(err).Fatal("failed to open history store")
	}
	defer closer.Close()
	log.WithField("backend", conf.HistoryBackend).Info("history store ready")

	metrics, err := observe.NewGlobalMetrics()
	if err != nil {
		log.WithError(err).Fatal("failed to create metrics")
	}
	eng := pipeline.NewEngine(store)
	eng.Config = conf.Scoring
	eng.Narrator = narrator.FromEnv()
	eng.Observer = observe.Multi{observe.NewLogObserver(log.Entry), metrics}

	provider, err := transcription.FromEnv()
	if err != nil {
		log.WithError(err).Warn("transcription provider not configured; /process disabled")
	}

	srvHandlers := &handlers{engine: eng, store: store, provider: provider}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/analyze", srvHandlers.analyze)
	mux.HandleFunc("/process", srvHandlers.process)
	mux.HandleFunc("/history", srvHandlers.history)

	addr := fmt.Sprintf(":%s", conf.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
