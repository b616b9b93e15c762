package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gifcast/internal/ports"
	"gifcast/internal/types"
)

type Deps struct {
	Video  ports.VideoTool
	Speech ports.SpeechRecognizer
	Logger *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Usecase{d: d}
}

type Input struct {
	Source    types.VideoHandle
	Window    types.TimeWindow
	Subtitles bool

	// WorkDir is request-scoped scratch space for the audio artifact.
	// GIFPath is the final, collision-free output location.
	WorkDir string
	GIFPath string
}

type Result struct {
	GIFPath    string
	Transcript string
}

// Run drives one conversion: validate, extract audio, transcribe,
// render, clean up. Transcription is best-effort; losing subtitles is
// acceptable, losing the GIF is not. Extraction failures degrade the
// same way, since the GIF itself does not need the audio artifact.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	defer u.cleanup(in)

	if err := in.Window.Validate(); err != nil {
		return Result{}, err
	}
	if in.Source.Source() == "" {
		return Result{}, fmt.Errorf("%w: no video source", types.ErrInvalidInput)
	}

	// A probe failure is not fatal: the source may still render. A
	// window past the media's end is a caller fault.
	if dur, err := u.d.Video.ProbeDuration(ctx, in.Source.Source()); err != nil {
		u.d.Logger.Warn("duration probe failed, skipping range check", "error", err)
	} else if dur > 0 && in.Window.End > dur {
		return Result{}, fmt.Errorf("%w: window end %g exceeds media duration %g", types.ErrInvalidInput, in.Window.End, dur)
	}

	transcript := ""
	if in.Subtitles {
		transcript = u.transcribeWindow(ctx, in)
	}

	if err := u.d.Video.RenderGIF(ctx, in.Source.Source(), in.Window.Start, in.Window.Duration(), in.GIFPath, transcript); err != nil {
		return Result{}, fmt.Errorf("%w: %v", types.ErrRenderFailed, err)
	}

	return Result{GIFPath: in.GIFPath, Transcript: transcript}, nil
}

// transcribeWindow extracts the window's audio and recognizes it.
// Every failure here returns an empty transcript instead of an error.
func (u Usecase) transcribeWindow(ctx context.Context, in Input) string {
	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		u.d.Logger.Warn("work dir unavailable, skipping subtitles", "error", err)
		return ""
	}
	wav := filepath.Join(in.WorkDir, "audio.wav")

	if err := u.d.Video.ExtractAudioSegment(ctx, in.Source.Source(), in.Window.Start, in.Window.Duration(), wav); err != nil {
		u.d.Logger.Warn("audio extraction failed, rendering without subtitles",
			"error", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err))
		return ""
	}

	text, err := u.d.Speech.Recognize(ctx, wav)
	if err != nil {
		u.d.Logger.Warn("transcription failed, rendering without subtitles", "error", err)
		return ""
	}
	return text
}

// cleanup removes everything the request owned: the scratch dir with
// the audio artifact and the staged upload. The rendered GIF stays.
// Failures are logged, never surfaced.
func (u Usecase) cleanup(in Input) {
	if in.WorkDir != "" {
		if err := os.RemoveAll(in.WorkDir); err != nil {
			u.d.Logger.Warn("cleanup of work dir failed", "dir", in.WorkDir, "error", err)
		}
	}
	if in.Source.Staged && in.Source.Path != "" {
		if err := os.Remove(in.Source.Path); err != nil && !os.IsNotExist(err) {
			u.d.Logger.Warn("cleanup of staged upload failed", "path", in.Source.Path, "error", err)
		}
	}
}
