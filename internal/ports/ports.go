package ports

import "context"

// VideoTool abstracts the media engine. src is either a local path or a
// URL; start and dur are seconds with sub-second precision.
type VideoTool interface {
	ExtractAudioSegment(ctx context.Context, src string, start, dur float64, outWav string) error
	RenderGIF(ctx context.Context, src string, start, dur float64, outGIF, caption string) error
	ProbeDuration(ctx context.Context, src string) (float64, error)
}

// SpeechRecognizer turns a mono 16 kHz WAV into plain text. A missing
// or empty audio file yields ("", nil) without contacting any backend.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, wavPath string) (string, error)
}
