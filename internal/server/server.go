package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gifcast/internal/pipeline"
	"gifcast/internal/source"
	"gifcast/internal/types"
)

// Converter is the pipeline seam; handler tests plug in a fake.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (types.ConversionResult, error)
}

type App struct {
	logger   *slog.Logger
	router   *chi.Mux
	conv     Converter
	resolver *source.Resolver

	outputsDir     string
	maxUploadBytes int64
	dev            bool
}

func NewApp(logger *slog.Logger, conv Converter, resolver *source.Resolver, outputsDir string, maxUploadBytes int64, dev bool) *App {
	app := &App{
		logger:         logger,
		router:         chi.NewRouter(),
		conv:           conv,
		resolver:       resolver,
		outputsDir:     outputsDir,
		maxUploadBytes: maxUploadBytes,
		dev:            dev,
	}
	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler { return a.router }

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(10 * time.Minute))

	a.router.Post("/api/convert", a.convert)
	a.router.Get("/healthz", a.health)

	gifFS := http.FileServer(http.Dir(a.outputsDir))
	a.router.Handle("/gifs/*", http.StripPrefix("/gifs/", gifFS))
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

type convertResponse struct {
	GIFURL        string         `json:"gifUrl"`
	Transcription *string        `json:"transcription"`
	Metadata      types.Metadata `json:"metadata"`
}

// multipartOverhead is headroom for the multipart boundaries and the
// non-file form fields, so an upload exactly at the configured limit
// still fits in the request body. The video part itself stays bounded
// by the resolver's size checks.
const multipartOverhead = 64 << 10

func (a *App) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid multipart upload or body too large")
		return
	}

	window, err := parseWindow(r.FormValue("startTime"), r.FormValue("endTime"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	subtitles := parseBool(r.FormValue("subtitles"))

	handle, err := a.resolveSource(r)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			a.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("failed to stage upload", "error", err)
		a.respondError(w, http.StatusInternalServerError, a.internalMessage(err))
		return
	}

	res, err := a.conv.Convert(r.Context(), pipeline.Request{
		Source:    handle,
		Window:    window,
		Subtitles: subtitles,
	})
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			a.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("conversion failed", "error", err)
		a.respondError(w, http.StatusInternalServerError, a.internalMessage(err))
		return
	}

	resp := convertResponse{GIFURL: res.GIFURL, Metadata: res.Meta}
	if res.Transcript != "" {
		resp.Transcription = &res.Transcript
	}
	a.logger.Info("conversion completed", "gif", res.GIFURL, "duration", res.Meta.Duration, "subtitled", resp.Transcription != nil)
	a.respondJSON(w, http.StatusOK, resp)
}

// resolveSource prefers an uploaded file; a videoUrl field is the
// fallback. Neither present is a caller fault.
func (a *App) resolveSource(r *http.Request) (types.VideoHandle, error) {
	file, header, err := r.FormFile("video")
	if err == nil {
		defer file.Close()
		return a.resolver.Stage(file, header.Size, header.Filename)
	}
	if raw := strings.TrimSpace(r.FormValue("videoUrl")); raw != "" {
		return a.resolver.Remote(raw)
	}
	return types.VideoHandle{}, fmt.Errorf("%w: a video file or videoUrl is required", types.ErrInvalidInput)
}

func parseWindow(startRaw, endRaw string) (types.TimeWindow, error) {
	start, err := strconv.ParseFloat(strings.TrimSpace(startRaw), 64)
	if err != nil {
		return types.TimeWindow{}, errors.New("startTime must be a number of seconds")
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endRaw), 64)
	if err != nil {
		return types.TimeWindow{}, errors.New("endTime must be a number of seconds")
	}
	w := types.TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return types.TimeWindow{}, err
	}
	return w, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func (a *App) internalMessage(err error) string {
	if a.dev {
		return err.Error()
	}
	return "internal error during conversion"
}

func (a *App) respondError(w http.ResponseWriter, code int, msg string) {
	a.respondJSON(w, code, map[string]string{"error": msg})
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}
