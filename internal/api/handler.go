// Package api exposes the render engine's controls and output over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"

	"dotveil/internal/engine"
	"dotveil/internal/media"
	"dotveil/internal/segment"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// StatsSource reports oracle driver counters. *segment.Driver implements it.
type StatsSource interface {
	Stats() segment.Stats
}

// Handler serves the control surface using go-chi.
type Handler struct {
	eng     *engine.Engine
	catalog media.Catalog
	stats   StatsSource
	log     *slog.Logger
}

// NewHandler returns a Handler for eng. catalog and stats may be nil: without
// a catalog the media list cannot be refreshed, without stats /state omits
// the oracle section.
func NewHandler(eng *engine.Engine, catalog media.Catalog, stats StatsSource, log *slog.Logger) *Handler {
	return &Handler{eng: eng, catalog: catalog, stats: stats, log: log}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/controls", func(r chi.Router) {
		r.Post("/resize", h.Resize)
		r.Post("/mode", h.CycleMode)
		r.Post("/density", h.CycleDensity)
		r.Post("/trail", h.ToggleTrail)
		r.Post("/mirror", h.ToggleMirror)
	})
	r.Get("/state", h.GetState)
	r.Get("/media", h.ListMedia)
	r.Post("/media/refresh", h.RefreshMedia)
	r.Get("/frame.png", h.GetFrame)
}

// Resize handles POST /controls/resize. Body: { "width": 640, "height": 480 }.
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Width == nil || req.Height == nil {
		h.log.Debug("invalid resize body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.eng.OnResize(*req.Width, *req.Height); err != nil {
		if errors.Is(err, engine.ErrInvalidSize) {
			h.log.Debug("resize rejected", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.log.Error("resize failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.log.Info("resize requested", slog.Int("width", *req.Width), slog.Int("height", *req.Height))
	w.WriteHeader(http.StatusAccepted)
}

// CycleMode handles POST /controls/mode.
func (h *Handler) CycleMode(w http.ResponseWriter, r *http.Request) {
	h.eng.OnModeCycle()
	h.writeJSON(w, http.StatusOK, h.state())
}

// CycleDensity handles POST /controls/density.
func (h *Handler) CycleDensity(w http.ResponseWriter, r *http.Request) {
	d := h.eng.OnDensityCycle()
	h.log.Info("density changed", slog.String("density", d.String()))
	h.writeJSON(w, http.StatusOK, DensityResponse{Density: d.String()})
}

// ToggleTrail handles POST /controls/trail.
func (h *Handler) ToggleTrail(w http.ResponseWriter, r *http.Request) {
	on := h.eng.OnTrailToggle()
	h.log.Info("trail toggled", slog.Bool("enabled", on))
	h.writeJSON(w, http.StatusOK, ToggleResponse{Enabled: on})
}

// ToggleMirror handles POST /controls/mirror.
func (h *Handler) ToggleMirror(w http.ResponseWriter, r *http.Request) {
	on := h.eng.OnMirrorToggle()
	h.log.Info("mirror toggled", slog.Bool("enabled", on))
	h.writeJSON(w, http.StatusOK, ToggleResponse{Enabled: on})
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.state())
}

// ListMedia handles GET /media. With ?format=m3u the list is returned as an
// extended M3U playlist instead of JSON.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	entries := h.eng.Session().Entries()
	if r.URL.Query().Get("format") == "m3u" {
		w.Header().Set("Content-Type", playlistContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(media.BuildPlaylist(entries)))
		return
	}
	if entries == nil {
		entries = []media.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// RefreshMedia handles POST /media/refresh: the catalog is rescanned and the
// session returns to flat colour with the new list.
func (h *Handler) RefreshMedia(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entries, err := h.catalog.Entries(r.Context())
	if err != nil {
		h.log.Error("media discovery failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	h.eng.Session().SetEntries(entries)
	h.log.Info("media refreshed", slog.Int("entries", len(entries)))
	h.writeJSON(w, http.StatusOK, entries)
}

// GetFrame handles GET /frame.png.
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame := h.eng.Frame()
	if frame == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, frame); err != nil {
		h.log.Debug("frame write failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) state() StateResponse {
	var out StateResponse
	sessionFields(h.eng.Session().State(), &out)
	out.Canvas.Width, out.Canvas.Height = h.eng.Canvas()
	out.ActiveDots = h.eng.ActiveDots()
	out.Ticks = h.eng.Ticks()
	if h.stats != nil {
		out.Oracle = oracleStatus(h.stats.Stats())
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("response write failed", slog.String("error", err.Error()))
	}
}
