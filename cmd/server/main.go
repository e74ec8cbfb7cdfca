package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dotveil/internal/api"
	"dotveil/internal/camera"
	"dotveil/internal/dotfield"
	"dotveil/internal/engine"
	"dotveil/internal/mask"
	"dotveil/internal/media"
	"dotveil/internal/platform/config"
	"dotveil/internal/platform/logger"
	"dotveil/internal/platform/metrics"
	"dotveil/internal/segment"
	"dotveil/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gogpu/gg"
	"github.com/google/uuid"
)

const (
	shutdownTimeout = 10 * time.Second
	discoverTimeout = 5 * time.Second
	// lumaThreshold separates the bright subject from the backdrop for the
	// built-in oracle.
	lumaThreshold = 128
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	width := config.GetEnvInt("CANVAS_WIDTH", 640)
	height := config.GetEnvInt("CANVAS_HEIGHT", 480)
	interval := config.GetEnvDuration("FRAME_INTERVAL", engine.DefaultInterval)
	mediaDir := config.GetEnv("MEDIA_DIR", "")
	mediaPlaylist := config.GetEnv("MEDIA_PLAYLIST", "")
	mirror := config.GetEnvBool("MIRROR", true)
	trailOn := config.GetEnvBool("TRAIL", true)

	log := logger.New(logLevel, logFormat).With(slog.String("session_id", uuid.NewString()))
	gg.SetLogger(log.With(slog.String("component", "gg")))

	model, ok := segment.ParseModel(config.GetEnv("MODEL_SELECTION", "general"))
	if !ok {
		log.Warn("unknown MODEL_SELECTION, using general")
	}
	density, ok := dotfield.ParseDensity(config.GetEnv("DENSITY", "medium"))
	if !ok {
		log.Warn("unknown DENSITY, using medium")
		density = dotfield.Medium
	}

	if width <= 0 || height <= 0 {
		log.Error("canvas size must be positive", "width", width, "height", height)
		os.Exit(1)
	}

	met := metrics.New()

	var catalog media.Catalog
	switch {
	case mediaPlaylist != "":
		catalog = media.PlaylistCatalog{Path: mediaPlaylist}
	case mediaDir != "":
		catalog = media.DirCatalog{Dir: mediaDir}
	}

	ctrl := session.NewController(media.NewLoader(log), log,
		session.WithDensity(density),
		session.WithTrail(trailOn),
		session.WithMirror(mirror),
		session.WithModeObserver(func(st session.State) { met.IncModeChanges(st.Mode.String()) }),
	)
	if catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout)
		entries, err := catalog.Entries(ctx)
		cancel()
		if err != nil {
			log.Error("media discovery failed, flat colour only", "error", err)
		} else {
			ctrl.SetEntries(entries)
			log.Info("media discovered", slog.Int("entries", len(entries)))
		}
	}

	stab := mask.NewStabilizer()
	driver := segment.NewDriver(segment.NewLumaOracle(lumaThreshold), stab,
		log.With(slog.String("component", "segment")), met,
		segment.Options{Model: model, Mirror: mirror})
	cam := camera.NewSynthetic(width, height, nil)

	eng, err := engine.New(engine.Config{
		Width:    width,
		Height:   height,
		Interval: interval,
		Palette:  dotfield.DefaultPalette(),
	}, ctrl, stab, log,
		engine.WithSegmenter(driver, cam),
		engine.WithRecorder(met),
	)
	if err != nil {
		log.Error("engine setup failed", "error", err)
		os.Exit(1)
	}

	h := api.NewHandler(eng, catalog, driver, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log, "/frame.png", "/metrics"))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetOracleDegraded(driver.Degraded())
		}).ServeHTTP(w, r)
	})
	h.Mount(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("render loop error", "error", err)
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"canvas_width", width,
		"canvas_height", height,
		"frame_interval", interval.String(),
		"model", model.String(),
		"density", density.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stopRun()
	<-runDone
	if err := driver.Close(); err != nil {
		log.Error("oracle close error", "error", err)
	}
	ctrl.Close()
	_ = cam.Close()
	_ = eng.Close()

	log.Info("server stopped")
}
