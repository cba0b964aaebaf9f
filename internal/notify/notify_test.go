package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rowjay/shop-backup/internal/config"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err      error
		failures int
		want     string
	}{
		{nil, 0, StatusSuccess},
		{nil, 2, StatusPartial},
		{errors.New("boom"), 2, StatusFailed},
	}
	for _, c := range cases {
		if got := Status(c.err, c.failures); got != c.want {
			t.Errorf("Status(%v, %d) = %s, want %s", c.err, c.failures, got, c.want)
		}
	}
}

func TestFromConfigDeliversToAllTargets(t *testing.T) {
	var webhook Event
	var mattermost map[string]string
	var matrixBody map[string]any
	var matrixAuth, matrixMethod, matrixPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case r.URL.Path == "/hook":
			if r.Header.Get("X-Token") != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.Unmarshal(body, &webhook)
		case r.URL.Path == "/mm":
			_ = json.Unmarshal(body, &mattermost)
		case strings.HasPrefix(r.URL.Path, "/_matrix/"):
			matrixAuth = r.Header.Get("Authorization")
			matrixMethod = r.Method
			matrixPath = r.URL.EscapedPath()
			_ = json.Unmarshal(body, &matrixBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	multi := FromConfig(config.NotificationsConfig{
		Webhooks:   []config.WebhookConfig{{Name: "ops", URL: srv.URL + "/hook", Headers: map[string]string{"X-Token": "abc"}}},
		Mattermost: []config.MattermostHook{{Name: "chat", URL: srv.URL + "/mm"}},
		Matrix:     []config.MatrixConfig{{Name: "room", ServerURL: srv.URL + "/", AccessToken: "tok", RoomID: "!room:example.org"}},
	})
	event := Event{Type: "backup", Status: StatusPartial, Message: "captured 18 tables, 1 error(s)", Key: "shop/backup-full-2026-10-17.zip"}
	if err := multi.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if webhook.Key != event.Key || webhook.Status != StatusPartial {
		t.Fatalf("webhook got %+v", webhook)
	}
	if mattermost["text"] != "[partial] backup captured 18 tables, 1 error(s)" {
		t.Fatalf("mattermost got %v", mattermost)
	}
	if matrixAuth != "Bearer tok" || matrixMethod != http.MethodPut || matrixBody["msgtype"] != "m.text" {
		t.Fatalf("matrix got auth=%q method=%s body=%v", matrixAuth, matrixMethod, matrixBody)
	}
	if !strings.Contains(matrixPath, "/rooms/%21room:example.org/send/m.room.message/") {
		t.Fatalf("matrix path %s", matrixPath)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	multi := Multi{Targets: []Notifier{
		Webhook{Name: "a", URL: srv.URL},
		nil,
		Mattermost{Name: "b", URL: srv.URL},
	}}
	err := multi.Notify(context.Background(), Event{Type: "restore", Status: StatusFailed})
	if err == nil || !strings.Contains(err.Error(), "webhook a") || !strings.Contains(err.Error(), "mattermost b") {
		t.Fatalf("expected both failures, got %v", err)
	}
	if !(Multi{}).Empty() {
		t.Fatal("empty multi should report Empty")
	}
}
