package types

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy for a single conversion request. Handlers map these to
// HTTP statuses; everything not wrapping one of them is an internal fault.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrExtractionFailed = errors.New("audio extraction failed")
	ErrRenderFailed     = errors.New("gif render failed")
)

// TimeWindow is the half-open [Start, End) segment of the source video,
// in seconds. The trim UI works at centisecond resolution; sub-second
// values are preserved through the whole pipeline.
type TimeWindow struct {
	Start float64
	End   float64
}

func (w TimeWindow) Duration() float64 { return w.End - w.Start }

func (w TimeWindow) Validate() error {
	if math.IsNaN(w.Start) || math.IsInf(w.Start, 0) ||
		math.IsNaN(w.End) || math.IsInf(w.End, 0) {
		return fmt.Errorf("%w: time window must be finite", ErrInvalidInput)
	}
	if w.Start < 0 {
		return fmt.Errorf("%w: start must be >= 0, got %g", ErrInvalidInput, w.Start)
	}
	if w.End <= w.Start {
		return fmt.Errorf("%w: end (%g) must be greater than start (%g)", ErrInvalidInput, w.End, w.Start)
	}
	return nil
}

// VideoHandle is a resolved source video: either a local file staged
// from an upload, or a remote URL that ffmpeg reads directly. Exactly
// one of Path/URL is set. Staged files belong to the request and are
// removed by the orchestrator when it finishes.
type VideoHandle struct {
	Path   string
	URL    string
	Size   int64
	Staged bool
}

// Source returns whichever locator the handle carries.
func (h VideoHandle) Source() string {
	if h.Path != "" {
		return h.Path
	}
	return h.URL
}

type Metadata struct {
	Duration   float64 `json:"duration"`
	Start      float64 `json:"startTime"`
	End        float64 `json:"endTime"`
	SourceSize int64   `json:"originalSize"`
}

// ConversionResult is what one request produces. Transcript is empty
// when transcription was skipped or degraded; the HTTP layer serializes
// that as null.
type ConversionResult struct {
	GIFPath    string
	GIFURL     string
	Transcript string
	Meta       Metadata
}
