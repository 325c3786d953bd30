// Package client submits time-clock marks to the MercadinhoSys API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MaldivaSky/mercadinhosys-sub003/camera"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
)

const (
	DefaultSubmitPath = "/api/ponto"
	HealthPath        = "/api/hello"
	maxErrorBody      = 64 << 10
)

// PhotoStore offloads photos to object storage and returns the URL sent to the API.
type PhotoStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Config struct {
	BaseURL    string
	SubmitPath string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Photos     PhotoStore // optional
}

type Client struct {
	base       string
	submitPath string
	token      string
	http       *http.Client
	photos     PhotoStore
}

func New(cfg Config) *Client {
	if cfg.SubmitPath == "" {
		cfg.SubmitPath = DefaultSubmitPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		submitPath: "/" + strings.TrimLeft(cfg.SubmitPath, "/"),
		token:      cfg.Token,
		http:       hc,
		photos:     cfg.Photos,
	}
}

type submitPayload struct {
	EventID    string           `json:"event_id"`
	UserID     string           `json:"user_id,omitempty"`
	Type       models.EventType `json:"type"`
	CapturedAt time.Time        `json:"captured_at"`
	Photo      string           `json:"photo,omitempty"`
	PhotoURL   string           `json:"photo_url,omitempty"`
	Latitude   *float64         `json:"latitude,omitempty"`
	Longitude  *float64         `json:"longitude,omitempty"`
	DeviceInfo string           `json:"device_info,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// ackBody aceita id numérico (points.id) ou texto.
type ackBody struct {
	ID        json.RawMessage    `json:"id"`
	Status    models.StatusPoint `json:"status"`
	ClockIn   *time.Time         `json:"clock_in"`
	ClockOut  *time.Time         `json:"clock_out"`
	Timestamp *time.Time         `json:"timestamp"`
}

// Submit implements ponto.Submitter.
func (c *Client) Submit(ctx context.Context, ev models.AttendanceEvent) (models.Confirmation, error) {
	payload := submitPayload{
		EventID:    ev.ID,
		UserID:     ev.UserID,
		Type:       ev.Type,
		CapturedAt: ev.CapturedAt,
		Photo:      ev.Photo,
		DeviceInfo: ev.DeviceInfo,
		Note:       ev.Note,
	}
	if ev.Location != nil {
		lat, lng := ev.Location.Latitude, ev.Location.Longitude
		payload.Latitude = &lat
		payload.Longitude = &lng
	}

	if c.photos != nil && strings.HasPrefix(ev.Photo, "data:") {
		url, err := c.offloadPhoto(ctx, ev)
		if err != nil {
			return models.Confirmation{}, &ponto.TransportError{Err: err}
		}
		if url != "" {
			payload.Photo = ""
			payload.PhotoURL = url
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.Confirmation{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+c.submitPath, bytes.NewReader(body))
	if err != nil {
		return models.Confirmation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.ID)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Confirmation{}, &ponto.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return models.Confirmation{}, &ponto.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Confirmation{}, classify(resp.StatusCode, raw)
	}

	conf := models.Confirmation{EventID: ev.ID}
	point, ok := decodeAck(raw)
	if ok {
		conf.RemoteID = point.ID
		if at, ok := point.At(); ok {
			conf.At = at.UTC()
		}
	}
	return conf, nil
}

// Ping checks that the API answers; the connectivity watcher uses it as probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) offloadPhoto(ctx context.Context, ev models.AttendanceEvent) (string, error) {
	data, mime, err := camera.ParseDataURL(ev.Photo)
	if err != nil {
		// não é um data URL válido; segue inline
		return "", nil
	}
	url, err := c.photos.Put(ctx, PhotoKey(ev, mime), data, mime)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return url, nil
}

// PhotoKey is stable per event so a replay overwrites the same object.
func PhotoKey(ev models.AttendanceEvent, mime string) string {
	user := ev.UserID
	if user == "" {
		user = "anon"
	}
	ext := "jpg"
	switch mime {
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("ponto/%s/%s/%s.%s", user, ev.CapturedAt.UTC().Format("2006-01-02"), ev.ID, ext)
}

func classify(status int, body []byte) error {
	msg := errorMessage(body)
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &ponto.TransportError{StatusCode: status, Err: errors.New(msg)}
	case status >= 400:
		return &ponto.RejectedError{StatusCode: status, Message: msg}
	}
	return &ponto.TransportError{StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
}

func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(trimmed)
}

func decodeAck(raw []byte) (models.Point, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.Point{}, false
	}
	var ack ackBody
	if err := json.Unmarshal(raw, &ack); err != nil {
		return models.Point{}, false
	}
	id := strings.Trim(string(ack.ID), `"`)
	if id == "null" {
		id = ""
	}
	return models.Point{
		ID:        id,
		Status:    ack.Status,
		ClockIn:   ack.ClockIn,
		ClockOut:  ack.ClockOut,
		Timestamp: ack.Timestamp,
	}, true
}
