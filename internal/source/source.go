package source

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gifcast/internal/types"
)

// Resolver normalizes whatever the caller sent, uploaded bytes or a
// remote reference, into a VideoHandle the rest of the pipeline can
// feed to the media engine. Staged files are the orchestrator's to
// clean up, not the resolver's.
type Resolver struct {
	dir      string
	maxBytes int64
}

func NewResolver(dir string, maxBytes int64) *Resolver {
	return &Resolver{dir: dir, maxBytes: maxBytes}
}

// Stage writes uploaded bytes to the uploads area under a unique name.
func (r *Resolver) Stage(src io.Reader, size int64, name string) (types.VideoHandle, error) {
	if size <= 0 {
		return types.VideoHandle{}, fmt.Errorf("%w: empty upload", types.ErrInvalidInput)
	}
	if size > r.maxBytes {
		return types.VideoHandle{}, fmt.Errorf("%w: upload of %d bytes exceeds limit of %d", types.ErrInvalidInput, size, r.maxBytes)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return types.VideoHandle{}, fmt.Errorf("prepare uploads dir: %w", err)
	}

	dst := filepath.Join(r.dir, uuid.NewString()+"_"+sanitizeFileName(name))
	f, err := os.Create(dst)
	if err != nil {
		return types.VideoHandle{}, fmt.Errorf("stage upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(src, r.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return types.VideoHandle{}, fmt.Errorf("stage upload: %w", err)
	}
	if n == 0 {
		_ = os.Remove(dst)
		return types.VideoHandle{}, fmt.Errorf("%w: empty upload", types.ErrInvalidInput)
	}
	if n > r.maxBytes {
		_ = os.Remove(dst)
		return types.VideoHandle{}, fmt.Errorf("%w: upload exceeds limit of %d bytes", types.ErrInvalidInput, r.maxBytes)
	}

	return types.VideoHandle{Path: dst, Size: n, Staged: true}, nil
}

// Remote validates an absolute http(s) URL and wraps it as a handle.
func (r *Resolver) Remote(raw string) (types.VideoHandle, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.VideoHandle{}, fmt.Errorf("%w: no video file or URL provided", types.ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return types.VideoHandle{}, fmt.Errorf("%w: malformed video URL %q", types.ErrInvalidInput, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return types.VideoHandle{}, fmt.Errorf("%w: unsupported URL scheme %q", types.ErrInvalidInput, u.Scheme)
	}
	return types.VideoHandle{URL: u.String()}, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		return "video.bin"
	}
	return name
}
