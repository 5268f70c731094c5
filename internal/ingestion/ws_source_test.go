package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSTickSourceDecodesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"ts":1000,"symbol":"005930","price":100.5,"volume":10}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx := context.Background()
	src, err := NewWSTickSource(ctx, wsURL, DefaultWSSourceConfig())
	if err != nil {
		t.Fatalf("NewWSTickSource: %v", err)
	}
	defer src.Close()

	tick, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tick.Symbol != "005930" || tick.Price != 100.5 || tick.Volume != 10 {
		t.Errorf("decoded tick = %+v, unexpected", tick)
	}
}

func TestWSTickSourceDialFailureReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewWSTickSource(ctx, "ws://127.0.0.1:1/does-not-exist", DefaultWSSourceConfig())
	if err == nil {
		t.Fatal("expected a dial error for an unreachable address")
	}
}

func TestWSTickSourceNextRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	src, err := NewWSTickSource(context.Background(), wsURL, DefaultWSSourceConfig())
	if err != nil {
		t.Fatalf("NewWSTickSource: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	if err == nil {
		t.Fatal("expected Next to return an error on an already-cancelled context")
	}
}
