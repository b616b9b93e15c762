package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gifcast/internal/pipeline"
	"gifcast/internal/source"
	"gifcast/internal/types"
)

type fakeConverter struct {
	res   types.ConversionResult
	err   error
	calls int
	last  pipeline.Request
}

func (f *fakeConverter) Convert(_ context.Context, req pipeline.Request) (types.ConversionResult, error) {
	f.calls++
	f.last = req
	return f.res, f.err
}

func newTestApp(t *testing.T, conv *fakeConverter) *App {
	return newTestAppWithLimit(t, conv, 10<<20)
}

func newTestAppWithLimit(t *testing.T, conv *fakeConverter, maxUploadBytes int64) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := source.NewResolver(t.TempDir(), maxUploadBytes)
	return NewApp(logger, conv, resolver, t.TempDir(), maxUploadBytes, false)
}

type formField struct{ name, value string }

func multipartBody(t *testing.T, video []byte, fields ...formField) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if video != nil {
		fw, err := mw.CreateFormFile("video", "clip.mp4")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(video); err != nil {
			t.Fatalf("write video: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func doConvert(t *testing.T, app *App, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func TestConvert_UploadSuccess(t *testing.T) {
	conv := &fakeConverter{res: types.ConversionResult{
		GIFURL:     "/gifs/20260212-103045Z-abc123.gif",
		Transcript: "hello world",
		Meta:       types.Metadata{Duration: 3, Start: 2, End: 5, SourceSize: 9},
	}}
	app := newTestApp(t, conv)

	body, ct := multipartBody(t, []byte("fakevideo"),
		formField{"startTime", "2"},
		formField{"endTime", "5"},
		formField{"subtitles", "true"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		GIFURL        string  `json:"gifUrl"`
		Transcription *string `json:"transcription"`
		Metadata      struct {
			Duration     float64 `json:"duration"`
			StartTime    float64 `json:"startTime"`
			EndTime      float64 `json:"endTime"`
			OriginalSize int64   `json:"originalSize"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.GIFURL != conv.res.GIFURL {
		t.Fatalf("gifUrl = %q", resp.GIFURL)
	}
	if resp.Transcription == nil || *resp.Transcription != "hello world" {
		t.Fatalf("transcription = %v", resp.Transcription)
	}
	if resp.Metadata.Duration != 3 || resp.Metadata.StartTime != 2 || resp.Metadata.EndTime != 5 {
		t.Fatalf("unexpected metadata: %+v", resp.Metadata)
	}

	if conv.calls != 1 {
		t.Fatalf("converter calls = %d", conv.calls)
	}
	if !conv.last.Subtitles {
		t.Fatalf("expected subtitles requested")
	}
	if !conv.last.Source.Staged || conv.last.Source.Path == "" {
		t.Fatalf("expected staged source handle, got %+v", conv.last.Source)
	}
	if conv.last.Window != (types.TimeWindow{Start: 2, End: 5}) {
		t.Fatalf("unexpected window: %+v", conv.last.Window)
	}
}

func TestConvert_TranscriptNullWhenAbsent(t *testing.T) {
	conv := &fakeConverter{res: types.ConversionResult{GIFURL: "/gifs/x.gif"}}
	app := newTestApp(t, conv)

	body, ct := multipartBody(t, []byte("fakevideo"),
		formField{"startTime", "0"},
		formField{"endTime", "1.5"},
		formField{"subtitles", "true"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"transcription":null`) {
		t.Fatalf("expected null transcription, body = %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"gifUrl":"/gifs/x.gif"`) {
		t.Fatalf("expected gifUrl despite missing transcript, body = %s", rec.Body.String())
	}
}

func TestConvert_RejectsBadWindows(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
	}{
		{"end equals start", "5", "5"},
		{"end before start", "5", "2"},
		{"negative start", "-1", "3"},
		{"not a number", "abc", "3"},
		{"missing", "", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			conv := &fakeConverter{}
			app := newTestApp(t, conv)

			body, ct := multipartBody(t, []byte("fakevideo"),
				formField{"startTime", tc.start},
				formField{"endTime", tc.end},
			)
			rec := doConvert(t, app, body, ct)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
			if conv.calls != 0 {
				t.Fatalf("converter should not run for invalid windows")
			}
		})
	}
}

func TestConvert_MissingSource(t *testing.T) {
	conv := &fakeConverter{}
	app := newTestApp(t, conv)

	body, ct := multipartBody(t, nil,
		formField{"startTime", "0"},
		formField{"endTime", "3"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
	if conv.calls != 0 {
		t.Fatalf("converter should not run without a source")
	}
}

func TestConvert_RemoteURLSource(t *testing.T) {
	conv := &fakeConverter{res: types.ConversionResult{GIFURL: "/gifs/x.gif"}}
	app := newTestApp(t, conv)

	body, ct := multipartBody(t, nil,
		formField{"startTime", "0"},
		formField{"endTime", "3"},
		formField{"videoUrl", "https://example.com/v.mp4"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if conv.last.Source.URL != "https://example.com/v.mp4" || conv.last.Source.Staged {
		t.Fatalf("unexpected source handle: %+v", conv.last.Source)
	}
}

func TestConvert_UploadAtExactLimitAccepted(t *testing.T) {
	const limit = 4096
	conv := &fakeConverter{res: types.ConversionResult{GIFURL: "/gifs/x.gif"}}
	app := newTestAppWithLimit(t, conv, limit)

	body, ct := multipartBody(t, bytes.Repeat([]byte("v"), limit),
		formField{"startTime", "0"},
		formField{"endTime", "3"},
		formField{"subtitles", "true"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for an at-limit upload; body = %s", rec.Code, rec.Body.String())
	}
	if conv.last.Source.Size != limit {
		t.Fatalf("staged size = %d, want %d", conv.last.Source.Size, limit)
	}
}

func TestConvert_UploadOverLimitRejected(t *testing.T) {
	const limit = 4096
	conv := &fakeConverter{}
	app := newTestAppWithLimit(t, conv, limit)

	body, ct := multipartBody(t, bytes.Repeat([]byte("v"), limit+1),
		formField{"startTime", "0"},
		formField{"endTime", "3"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an over-limit upload; body = %s", rec.Code, rec.Body.String())
	}
	if conv.calls != 0 {
		t.Fatalf("converter should not run for over-limit uploads")
	}
}

func TestConvert_RenderFailureIs500Generic(t *testing.T) {
	conv := &fakeConverter{err: errors.Join(types.ErrRenderFailed, errors.New("ffmpeg exploded: /secret/path"))}
	app := newTestApp(t, conv)

	body, ct := multipartBody(t, []byte("fakevideo"),
		formField{"startTime", "0"},
		formField{"endTime", "3"},
	)
	rec := doConvert(t, app, body, ct)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; body = %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "/secret/path") {
		t.Fatalf("internal detail leaked outside dev mode: %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, &fakeConverter{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
