// Package camera extracts one still frame from a capture source and turns it
// into the compact JPEG payload that travels with an attendance event.
package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	ErrCaptureFailed = errors.New("photo capture failed")
	ErrNoFrame       = errors.New("no frame available")
)

const (
	DefaultMaxWidth = 640
	DefaultQuality  = 80
	MaxRawBytes     = 8 << 20
)

// Source is a camera provider. Open starts the stream (asking for permission
// on devices that need it); the caller must Close the stream.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type Options struct {
	MaxWidth int
	Quality  int
}

type Photo struct {
	Data []byte
	MIME string
}

func (p Photo) DataURL() string {
	return "data:" + p.MIME + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Capture opens src, takes a single frame and encodes it. Every failure wraps
// ErrCaptureFailed.
func Capture(ctx context.Context, src Source, opts Options) (Photo, error) {
	if src == nil {
		return Photo{}, fmt.Errorf("%w: no camera source", ErrCaptureFailed)
	}
	stream, err := src.Open(ctx)
	if err != nil {
		return Photo{}, fmt.Errorf("%w: open stream: %w", ErrCaptureFailed, err)
	}
	defer stream.Close()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return Photo{}, fmt.Errorf("%w: read frame: %w", ErrCaptureFailed, err)
	}
	if frame == nil {
		return Photo{}, fmt.Errorf("%w: %w", ErrCaptureFailed, ErrNoFrame)
	}

	out, err := Encode(frame, opts)
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return out, nil
}

// Encode scales img down to opts.MaxWidth (keeping the aspect ratio) and
// encodes it as JPEG.
func Encode(img image.Image, opts Options) (Photo, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Photo{}, errors.New("invalid image dimensions")
	}

	dst := img
	if width > opts.MaxWidth {
		h := height * opts.MaxWidth / width
		if h < 1 {
			h = 1
		}
		resized := image.NewRGBA(image.Rect(0, 0, opts.MaxWidth, h))
		xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, xdraw.Over, nil)
		dst = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Photo{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Photo{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// Decode reads a png, jpeg or webp still.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("photo is empty")
	}
	if len(raw) > MaxRawBytes {
		return nil, errors.New("photo too large")
	}
	mime := http.DetectContentType(raw)
	switch mime {
	case "image/png", "image/jpeg", "image/webp":
	default:
		return nil, errors.New("photo must be png, jpeg, or webp")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if decoded, decodeErr := webp.Decode(bytes.NewReader(raw)); decodeErr == nil {
			return decoded, nil
		}
		return nil, errors.New("unable to decode photo")
	}
	return img, nil
}

// ParseDataURL decodes a base64 "data:<mime>;base64,<payload>" string.
func ParseDataURL(value string) ([]byte, string, error) {
	raw := strings.TrimSpace(value)
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", errors.New("invalid data url prefix")
	}
	comma := strings.Index(raw, ",")
	if comma <= 5 {
		return nil, "", errors.New("invalid data url payload")
	}
	meta := raw[5:comma]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, "", errors.New("data url must be base64")
	}
	mime := strings.TrimSpace(meta[:len(meta)-len(";base64")])
	if mime == "" {
		return nil, "", errors.New("missing data url mime type")
	}
	decoded, err := base64.StdEncoding.DecodeString(raw[comma+1:])
	if err != nil {
		return nil, "", errors.New("unable to decode data url")
	}
	if len(decoded) == 0 {
		return nil, "", errors.New("empty data url content")
	}
	return decoded, mime, nil
}
