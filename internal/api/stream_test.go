package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEventsReplayLastStatusForSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if env.cookie == nil {
		t.Fatal("expected a session cookie")
	}
	session := env.cookie.Value

	env.server.notifier.Broadcast("someone-else", ActionEvent{Type: "started", Tab: "predict", Message: "other"})
	env.server.notifier.Broadcast(session, ActionEvent{Type: "started", Tab: "predict", Message: "Predicting structure with ESMFold..."})

	header := http.Header{}
	header.Add("Cookie", sessionCookie+"="+session)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event ActionEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != "started" || event.Message != "Predicting structure with ESMFold..." {
		t.Fatalf("unexpected replayed event %+v", event)
	}
}

func TestNotifierForgetIsPerTab(t *testing.T) {
	n := NewActionNotifier()
	n.Broadcast("s1", ActionEvent{Type: "failed", Tab: "afdb"})
	n.Broadcast("s1", ActionEvent{Type: "completed", Tab: "predict"})

	n.Forget("s1", "afdb")
	if _, ok := n.LastStatus("s1", "afdb"); ok {
		t.Fatal("expected afdb status to be forgotten")
	}
	if event, ok := n.LastStatus("s1", "predict"); !ok || event.Type != "completed" {
		t.Fatalf("expected predict status to survive, got %+v %v", event, ok)
	}
}

func TestNotifierForgetBefore(t *testing.T) {
	n := NewActionNotifier()
	n.Broadcast("s1", ActionEvent{Type: "failed", Tab: "afdb"})
	n.Broadcast("s2", ActionEvent{Type: "completed", Tab: "predict"})

	if removed := n.ForgetBefore(time.Now().Add(-time.Hour)); removed != 0 {
		t.Fatalf("expected recent statuses kept, removed %d", removed)
	}
	if removed := n.ForgetBefore(time.Now().Add(time.Minute)); removed != 2 {
		t.Fatalf("expected 2 removed got %d", removed)
	}
	if _, ok := n.LastStatus("s2", "predict"); ok {
		t.Fatal("expected status to be dropped")
	}
}
