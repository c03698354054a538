package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardrender/internal/config"
	"cardrender/internal/notifications"
)

type captured struct {
	title, tags, priority, body string
}

func ntfyServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	got := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg, nil)
	if err := svc.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{Cards: 2}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil, nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config must give a noop service, got %v", err)
	}
}

func TestNtfyFormatsBatchEvents(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "started",
			send:        func(s notifications.Service) error { return s.NotifyBatchStarted(context.Background(), "run-1", 1) },
			expectTitle: "cardrender - Batch Started",
			expectBody:  "Rendering 1 card",
			expectTags:  "cardrender,batch,started",
		},
		{
			name: "completed",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{
					RunID: "run-1", Cards: 2, Images: 3, Duration: 1500 * time.Millisecond,
				})
			},
			expectTitle: "cardrender - Batch Complete",
			expectBody:  "Rendered 2 cards into 3 images in 2s",
			expectTags:  "cardrender,batch,completed",
		},
		{
			name: "completed with failures",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{
					Cards: 1, Images: 2, FailedImages: 1, Duration: time.Second,
				})
			},
			expectTitle: "cardrender - Batch Complete (with errors)",
			expectBody:  "Rendered 1 card into 2 images in 1s, 1 failed",
			expectTags:  "cardrender,batch,completed",
		},
		{
			name: "failed",
			send: func(s notifications.Service) error {
				return s.NotifyBatchFailed(context.Background(), "run-2", errors.New("render: device lost"))
			},
			expectTitle:    "cardrender - Batch Failed",
			expectBody:     "Batch failed: render: device lost",
			expectTags:     "cardrender,batch,error",
			expectPriority: "high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := ntfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg, nil)
			if err := tt.send(svc); err != nil {
				t.Fatalf("send: %v", err)
			}
			req := <-got
			if req.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectBody {
				t.Fatalf("body = %q, want %q", req.body, tt.expectBody)
			}
			if req.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyReportsHTTPErrors(t *testing.T) {
	srv, _ := ntfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg, nil).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
