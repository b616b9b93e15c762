package ffmpeg

import (
	"strings"
	"testing"
)

func TestFmtSeconds(t *testing.T) {
	tests := map[float64]string{
		0:     "0.000",
		2:     "2.000",
		2.5:   "2.500",
		61.23: "61.230",
		0.01:  "0.010",
	}
	for in, want := range tests {
		if got := fmtSeconds(in); got != want {
			t.Fatalf("fmtSeconds(%g) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildGIFFilter_NoCaption(t *testing.T) {
	got := buildGIFFilter("")
	if got != "fps=10,scale=480:-1:flags=lanczos" {
		t.Fatalf("unexpected filter: %s", got)
	}
}

func TestBuildGIFFilter_WithCaption(t *testing.T) {
	got := buildGIFFilter("hello there")
	if !strings.HasPrefix(got, "fps=10,scale=480:-1:flags=lanczos,drawtext=") {
		t.Fatalf("unexpected filter: %s", got)
	}
	if !strings.Contains(got, "hello there") {
		t.Fatalf("caption missing from filter: %s", got)
	}
}
