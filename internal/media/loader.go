package media

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"dotveil/internal/compositor"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxMediaBytes bounds how much of a single medium is read.
const maxMediaBytes = 256 << 20

// Loader opens and decodes background media. Local paths, file:// and
// http(s):// URLs are supported.
type Loader struct {
	client *http.Client
	now    func() time.Time
	log    *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http(s) URLs.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithClock sets the time source that drives clip playback.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// NewLoader returns a Loader logging to log.
func NewLoader(log *slog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{client: http.DefaultClient, now: time.Now, log: log}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load decodes e into a drawable source. Images become a Still; videos (an
// animated GIF) are decoded in full and become a looping Clip, so a returned
// Clip can always play without stalling.
func (l *Loader) Load(ctx context.Context, e Entry) (compositor.Source, error) {
	id := uuid.NewString()
	start := time.Now()
	l.log.Debug("media load started",
		slog.String("load_id", id),
		slog.String("url", e.URL),
		slog.String("type", string(e.Kind)))

	rc, err := l.open(ctx, e.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r := io.LimitReader(rc, maxMediaBytes)

	var src compositor.Source
	switch e.Kind {
	case KindImage:
		src, err = l.decodeStill(r)
	case KindVideo:
		src, err = l.decodeClip(r)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedMedia, e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", e.URL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := src.Size()
	l.log.Info("media loaded",
		slog.String("load_id", id),
		slog.String("url", e.URL),
		slog.Int("width", w),
		slog.Int("height", h),
		slog.Int("duration_ms", int(time.Since(start).Milliseconds())))
	return src, nil
}

func (l *Loader) decodeStill(r io.Reader) (compositor.Source, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyMedia
	}
	return NewStill(img), nil
}

func (l *Loader) decodeClip(r io.Reader) (compositor.Source, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	frames, delays := gifFrames(g)
	if len(frames) == 0 || frames[0].Rect.Empty() {
		return nil, ErrEmptyMedia
	}
	return NewClip(frames, delays, l.now), nil
}

func (l *Loader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		return resp.Body, nil
	case strings.HasPrefix(url, "file://"):
		url = strings.TrimPrefix(url, "file://")
	}
	f, err := os.Open(url)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	return f, nil
}
