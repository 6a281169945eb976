package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/coordinator"
	"github.com/harees/navguard/internal/delivery"
	"github.com/harees/navguard/internal/logging"
)

type recordedEvents struct {
	mu          sync.Mutex
	navigations []coordinator.NavigationEvent
	actions     []agent.UserAction
	closedTabs  []int
}

func (r *recordedEvents) HandleNavigation(ctx context.Context, ev coordinator.NavigationEvent) {
	r.mu.Lock()
	r.navigations = append(r.navigations, ev)
	r.mu.Unlock()
}

func (r *recordedEvents) HandleUserAction(ctx context.Context, tab int, ua agent.UserAction) {
	r.mu.Lock()
	r.actions = append(r.actions, ua)
	r.mu.Unlock()
}

func (r *recordedEvents) HandleTabClosed(ctx context.Context, tab int) {
	r.mu.Lock()
	r.closedTabs = append(r.closedTabs, tab)
	r.mu.Unlock()
}

type recordedReadiness struct {
	mu     sync.Mutex
	ready  []int
	forgot []int
}

func (r *recordedReadiness) MarkReady(tab int) {
	r.mu.Lock()
	r.ready = append(r.ready, tab)
	r.mu.Unlock()
}

func (r *recordedReadiness) Forget(tab int) {
	r.mu.Lock()
	r.forgot = append(r.forgot, tab)
	r.mu.Unlock()
}

type hubFixture struct {
	hub       *Hub
	events    *recordedEvents
	readiness *recordedReadiness
	srv       *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(logging.NewNop(), nil)
	events := &recordedEvents{}
	readiness := &recordedReadiness{}
	hub.Bind(events, readiness)

	router := gin.New()
	router.GET("/agent", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &hubFixture{hub: hub, events: events, readiness: readiness, srv: srv}
}

func (f *hubFixture) dial(t *testing.T, tab string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/agent?tab=" + tab
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}

func TestReadyHandshake(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "1")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ready"}))

	eventually(t, func() bool {
		f.readiness.mu.Lock()
		defer f.readiness.mu.Unlock()
		return len(f.readiness.ready) == 1 && f.readiness.ready[0] == 1
	}, "ready not observed")
}

func TestSendDeliversCommand(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "2")

	// wait for registration
	eventually(t, func() bool {
		return f.hub.Send(context.Background(), 2, delivery.Command{Type: delivery.CommandBlock, URL: "http://x.example"}) == nil
	}, "send never succeeded")

	var env outbound
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "command", env.Type)
	require.NotNil(t, env.Command)
	assert.Equal(t, delivery.CommandBlock, env.Command.Type)
	assert.Equal(t, "http://x.example", env.Command.URL)
}

func TestSendToUnknownTabFails(t *testing.T) {
	f := newHubFixture(t)
	err := f.hub.Send(context.Background(), 99, delivery.Command{Type: delivery.CommandBlock})
	assert.Error(t, err)
}

func TestRequestSignalsRoundTrip(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "3")

	// agent side: answer the first get_signals request
	go func() {
		var env outbound
		if err := conn.ReadJSON(&env); err != nil || env.Type != "get_signals" {
			return
		}
		conn.WriteJSON(map[string]interface{}{
			"type":      "signals",
			"requestId": env.RequestID,
			"signals":   agent.Signals{Hostname: "x.example", Title: "X"},
		})
	}()

	var sig *agent.Signals
	var err error
	eventually(t, func() bool {
		sig, err = f.hub.RequestSignals(context.Background(), 3)
		return err == nil
	}, "signals never returned")
	require.NotNil(t, sig)
	assert.Equal(t, "x.example", sig.Hostname)
}

func TestRequestSignalsTimesOut(t *testing.T) {
	f := newHubFixture(t)
	f.hub.signalWait = 30 * time.Millisecond
	_ = f.dial(t, "4")

	eventually(t, func() bool {
		_, err := f.hub.RequestSignals(context.Background(), 4)
		return err != nil && strings.Contains(err.Error(), "did not report")
	}, "expected timeout")
}

func TestNavigationDispatch(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "5")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":  "navigation",
		"frame": 0,
		"url":   "http://example.com",
	}))

	eventually(t, func() bool {
		f.events.mu.Lock()
		defer f.events.mu.Unlock()
		return len(f.events.navigations) == 1
	}, "navigation not dispatched")

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Equal(t, 5, f.events.navigations[0].Tab)
	assert.Equal(t, 0, f.events.navigations[0].Frame)
	assert.Equal(t, "http://example.com", f.events.navigations[0].URL)
}

func TestUserActionAndTabClosedDispatch(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "6")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "user_action",
		"action": agent.UserAction{Action: "proceed", URL: "http://x.example"},
	}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "tab_closed"}))

	eventually(t, func() bool {
		f.events.mu.Lock()
		defer f.events.mu.Unlock()
		return len(f.events.actions) == 1 && len(f.events.closedTabs) == 1
	}, "user action or tab close not dispatched")

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Equal(t, "proceed", f.events.actions[0].Action)
	assert.Equal(t, []int{6}, f.events.closedTabs)
}

func TestMalformedMessagesIgnored(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "7")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "???"}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "user_action"}))

	// the connection keeps working afterwards
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ready"}))
	eventually(t, func() bool {
		f.readiness.mu.Lock()
		defer f.readiness.mu.Unlock()
		return len(f.readiness.ready) == 1
	}, "connection stopped working after malformed input")

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Empty(t, f.events.actions)
}

func TestDisconnectForgetsReadiness(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "8")
	conn.Close()

	eventually(t, func() bool {
		f.readiness.mu.Lock()
		defer f.readiness.mu.Unlock()
		return len(f.readiness.forgot) == 1 && f.readiness.forgot[0] == 8
	}, "disconnect not observed")
}

func TestRejectsMissingTab(t *testing.T) {
	f := newHubFixture(t)
	resp, err := http.Get(f.srv.URL + "/agent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
