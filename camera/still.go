package camera

import (
	"context"
	"image"
)

// Still is a Source backed by a frame the browser already grabbed from its
// video stream and posted to the agent.
type Still struct {
	Raw []byte
}

// FromDataURL builds a Still from the SPA's canvas.toDataURL output.
func FromDataURL(value string) (Still, error) {
	raw, _, err := ParseDataURL(value)
	if err != nil {
		return Still{}, err
	}
	return Still{Raw: raw}, nil
}

func (s Still) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(s.Raw)
	if err != nil {
		return nil, err
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	img image.Image
}

func (s *stillStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.img == nil {
		return nil, ErrNoFrame
	}
	img := s.img
	s.img = nil
	return img, nil
}

func (s *stillStream) Close() error {
	s.img = nil
	return nil
}
