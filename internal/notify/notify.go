package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowjay/shop-backup/internal/config"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

type Event struct {
	Type       string    `json:"type"` // backup or restore
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	BackupType string    `json:"backup_type,omitempty"`
	Key        string    `json:"key,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Duration   string    `json:"duration"`
	Failures   []string  `json:"failures,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Status maps an operation outcome onto an event status: a fatal error is
// failed, recoverable failures make it partial.
func Status(err error, failures int) string {
	switch {
	case err != nil:
		return StatusFailed
	case failures > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

func (e Event) text() string {
	return fmt.Sprintf("[%s] %s %s", e.Status, e.Type, e.Message)
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type Multi struct {
	Targets []Notifier
}

// Notify delivers to every target and joins the errors of those that failed.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, target := range m.Targets {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Empty() bool { return len(m.Targets) == 0 }

type Webhook struct {
	Name    string
	URL     string
	Headers map[string]string
}

func (w Webhook) Notify(ctx context.Context, event Event) error {
	return post(ctx, "webhook "+w.Name, w.URL, w.Headers, event)
}

type Mattermost struct {
	Name string
	URL  string
}

func (m Mattermost) Notify(ctx context.Context, event Event) error {
	return post(ctx, "mattermost "+m.Name, m.URL, nil, map[string]string{"text": event.text()})
}

type Matrix struct {
	Name        string
	ServerURL   string
	AccessToken string
	RoomID      string
}

func (m Matrix) Notify(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		strings.TrimRight(m.ServerURL, "/"), url.PathEscape(m.RoomID), uuid.NewString())
	payload := map[string]any{
		"msgtype": "m.text",
		"body":    event.text(),
	}
	headers := map[string]string{"Authorization": "Bearer " + m.AccessToken}
	return putJSON(ctx, "matrix "+m.Name, endpoint, headers, payload)
}

func FromConfig(cfg config.NotificationsConfig) Multi {
	var targets []Notifier
	for _, w := range cfg.Webhooks {
		targets = append(targets, Webhook{Name: w.Name, URL: w.URL, Headers: w.Headers})
	}
	for _, mm := range cfg.Mattermost {
		targets = append(targets, Mattermost{Name: mm.Name, URL: mm.URL})
	}
	for _, mx := range cfg.Matrix {
		targets = append(targets, Matrix{Name: mx.Name, ServerURL: mx.ServerURL, AccessToken: mx.AccessToken, RoomID: mx.RoomID})
	}
	return Multi{Targets: targets}
}

func post(ctx context.Context, name, target string, headers map[string]string, payload any) error {
	return send(ctx, http.MethodPost, name, target, headers, payload)
}

// Matrix wants PUT for idempotent sends keyed by transaction id.
func putJSON(ctx context.Context, name, target string, headers map[string]string, payload any) error {
	return send(ctx, http.MethodPut, name, target, headers, payload)
}

func send(ctx context.Context, method, name, target string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", name, resp.Status)
	}
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
