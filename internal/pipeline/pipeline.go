package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gifcast/internal/ports"
	"gifcast/internal/ports/adapters/ffmpeg"
	"gifcast/internal/ports/adapters/gspeech"
	"gifcast/internal/ports/adapters/whispercpp"
	"gifcast/internal/types"
	"gifcast/internal/usecase"
)

const (
	BackendGoogle  = "google"
	BackendWhisper = "whisper"
)

type Config struct {
	UploadsDir string
	OutputsDir string
	WorkDir    string

	// PublicBasePath is the URL prefix under which OutputsDir is served.
	PublicBasePath string

	MaxUploadBytes int64

	FFmpegPath  string
	FFprobePath string

	SpeechBackend      string
	SpeechAPIKey       string
	SpeechLanguage     string
	SpeechBaseURL      string
	SpeechAllowedHosts []string

	WhisperBin   string
	WhisperModel string

	Logger *slog.Logger
}

func (c Config) Validate() error {
	if c.UploadsDir == "" {
		return errors.New("uploads dir is empty")
	}
	if c.OutputsDir == "" {
		return errors.New("outputs dir is empty")
	}
	if c.WorkDir == "" {
		return errors.New("work dir is empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be > 0")
	}
	switch c.SpeechBackend {
	case "", BackendGoogle:
		return gspeech.ValidateBaseURL(c.SpeechBaseURL, c.SpeechAllowedHosts)
	case BackendWhisper:
		if c.WhisperBin == "" || c.WhisperModel == "" {
			return errors.New("whisper backend requires bin and model paths")
		}
		return nil
	default:
		return fmt.Errorf("unknown speech backend %q", c.SpeechBackend)
	}
}

// Request is one conversion job: a resolved source, a trim window, and
// whether to burn subtitles.
type Request struct {
	Source    types.VideoHandle
	Window    types.TimeWindow
	Subtitles bool
}

// Runner holds the process-wide adapters, built once at startup, and
// runs one pipeline execution per Convert call.
type Runner struct {
	cfg Config
	uc  usecase.Usecase
}

func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.UploadsDir, cfg.OutputsDir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}

	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)

	var speech ports.SpeechRecognizer
	if cfg.SpeechBackend == BackendWhisper {
		speech = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	} else {
		speech = gspeech.New(cfg.SpeechAPIKey, cfg.SpeechLanguage, cfg.SpeechBaseURL)
	}

	uc := usecase.New(usecase.Deps{
		Video:  v,
		Speech: speech,
		Logger: cfg.Logger,
	})
	return &Runner{cfg: cfg, uc: uc}, nil
}

// Convert runs the full pipeline for one request and returns the result
// descriptor. Output names carry a timestamp plus a random-seeded hash
// suffix so concurrent requests never collide in the shared outputs dir.
func (r *Runner) Convert(ctx context.Context, req Request) (types.ConversionResult, error) {
	gifName := buildGIFName(time.Now().UTC())

	res, err := r.uc.Run(ctx, usecase.Input{
		Source:    req.Source,
		Window:    req.Window,
		Subtitles: req.Subtitles,
		WorkDir:   filepath.Join(r.cfg.WorkDir, uuid.NewString()),
		GIFPath:   filepath.Join(r.cfg.OutputsDir, gifName),
	})
	if err != nil {
		return types.ConversionResult{}, err
	}

	return types.ConversionResult{
		GIFPath:    res.GIFPath,
		GIFURL:     path.Join(r.cfg.PublicBasePath, gifName),
		Transcript: res.Transcript,
		Meta: types.Metadata{
			Duration:   req.Window.Duration(),
			Start:      req.Window.Start,
			End:        req.Window.End,
			SourceSize: req.Source.Size,
		},
	}, nil
}

func buildGIFName(now time.Time) string {
	ts := now.UTC().Format("20060102-150405Z")
	seed := fmt.Sprintf("%s|%d", uuid.NewString(), now.UTC().UnixNano())
	return fmt.Sprintf("%s-%s.gif", ts, hash(seed)[:6])
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.SpeechRecognizer = (*gspeech.Adapter)(nil)
var _ ports.SpeechRecognizer = (*whispercpp.Adapter)(nil)
