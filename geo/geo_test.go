package geo

import (
	"context"
	"errors"
	"testing"
)

func TestFromConfig(t *testing.T) {
	lat, lng := -3.7319, -38.5267

	loc, err := FromConfig(&lat, &lng).Locate(context.Background())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Latitude != lat || loc.Longitude != lng {
		t.Fatalf("loc=%+v", loc)
	}

	if _, err := FromConfig(&lat, nil).Locate(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestStatic_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Static{}).Locate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
