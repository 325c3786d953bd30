package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestCapture_ScalesDownWideFrames(t *testing.T) {
	src := Still{Raw: pngBytes(t, 1280, 720)}

	photo, err := Capture(context.Background(), src, Options{MaxWidth: 320})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Fatalf("mime=%s", photo.MIME)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(photo.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 180 {
		t.Fatalf("got %dx%d, want 320x180", cfg.Width, cfg.Height)
	}
}

func TestCapture_KeepsSmallFrames(t *testing.T) {
	src := Still{Raw: pngBytes(t, 100, 50)}

	photo, err := Capture(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(photo.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCapture_InvalidPayloadIsCaptureFailure(t *testing.T) {
	_, err := Capture(context.Background(), Still{Raw: []byte("definitely not an image")}, Options{})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
}

type deniedSource struct{}

func (deniedSource) Open(ctx context.Context) (Stream, error) {
	return nil, errors.New("permission denied")
}

func TestCapture_PermissionDenied(t *testing.T) {
	_, err := Capture(context.Background(), deniedSource{}, Options{})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	raw := pngBytes(t, 8, 8)
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	still, err := FromDataURL(url)
	if err != nil {
		t.Fatalf("from data url: %v", err)
	}
	if !bytes.Equal(still.Raw, raw) {
		t.Fatalf("payload mismatch")
	}

	photo, err := Capture(context.Background(), still, Options{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	back, mime, err := ParseDataURL(photo.DataURL())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mime != "image/jpeg" || !bytes.Equal(back, photo.Data) {
		t.Fatalf("data url did not round trip (mime=%s)", mime)
	}
}

func TestParseDataURL_Rejects(t *testing.T) {
	cases := []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:;base64,AAAA",
		"data:image/png;base64,%%%",
	}
	for _, c := range cases {
		if _, _, err := ParseDataURL(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}
