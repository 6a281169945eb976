// Package ws binds in-page agents to the coordinator over WebSocket. One
// connection exists per tab; the hub is both the delivery transport (pushing
// commands to agents) and the signal source (request/response with a bounded
// wait). Cross-context communication is message passing only: the hub never
// shares memory with an agent.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/coordinator"
	"github.com/harees/navguard/internal/delivery"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/monitoring"
)

// DefaultSignalWait bounds how long a signals request waits for the agent.
const DefaultSignalWait = 1200 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Agents are extension contexts, not ordinary web origins.
		return true
	},
}

// Events is the coordinator surface the hub dispatches inbound agent
// messages to.
type Events interface {
	HandleNavigation(ctx context.Context, ev coordinator.NavigationEvent)
	HandleUserAction(ctx context.Context, tab int, ua agent.UserAction)
	HandleTabClosed(ctx context.Context, tab int)
}

// Readiness is the handshake sink for agent attachment.
type Readiness interface {
	MarkReady(tab int)
	Forget(tab int)
}

// inbound is the envelope agents send to the hub.
type inbound struct {
	Type      string            `json:"type"`
	Frame     int               `json:"frame"`
	URL       string            `json:"url,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Signals   *agent.Signals    `json:"signals,omitempty"`
	Action    *agent.UserAction `json:"action,omitempty"`
}

// outbound is the envelope the hub sends to agents.
type outbound struct {
	Type      string            `json:"type"`
	RequestID string            `json:"requestId,omitempty"`
	Command   *delivery.Command `json:"command,omitempty"`
}

// conn is one agent connection with serialized writes.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub tracks agent connections per tab.
type Hub struct {
	log        *logging.Logger
	metrics    *monitoring.Metrics
	signalWait time.Duration

	mu      sync.RWMutex
	conns   map[int]*conn
	pending map[string]chan *agent.Signals

	events    Events
	readiness Readiness
}

// NewHub creates a hub. metrics may be nil.
func NewHub(log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if metrics == nil {
		metrics = monitoring.NewNop()
	}
	return &Hub{
		log:        log,
		metrics:    metrics,
		signalWait: DefaultSignalWait,
		conns:      make(map[int]*conn),
		pending:    make(map[string]chan *agent.Signals),
	}
}

// Bind wires the coordinator surfaces. Must be called before serving.
func (h *Hub) Bind(events Events, readiness Readiness) {
	h.events = events
	h.readiness = readiness
}

// Send implements delivery.Transport: one attempt to push a command to the
// tab's agent.
func (h *Hub) Send(ctx context.Context, tab int, cmd delivery.Command) error {
	h.mu.RLock()
	c, ok := h.conns[tab]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("tab %d: no agent attached", tab)
	}
	return c.writeJSON(outbound{Type: "command", Command: &cmd})
}

// RequestSignals implements coordinator.SignalSource: asks the tab's agent
// for content signals and waits a bounded time for the answer. Absence of a
// response is an error the coordinator tolerates.
func (h *Hub) RequestSignals(ctx context.Context, tab int) (*agent.Signals, error) {
	h.mu.RLock()
	c, ok := h.conns[tab]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tab %d: no agent attached", tab)
	}

	id := uuid.NewString()
	reply := make(chan *agent.Signals, 1)

	h.mu.Lock()
	h.pending[id] = reply
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := c.writeJSON(outbound{Type: "get_signals", RequestID: id}); err != nil {
		return nil, fmt.Errorf("request signals: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case sig := <-reply:
		return sig, nil
	case <-time.After(h.signalWait):
		return nil, errors.New("agent did not report signals in time")
	}
}

// HandleConnection upgrades an agent connection. The tab identity comes
// from the query string; the read loop runs until disconnect.
func (h *Hub) HandleConnection(c *gin.Context) {
	tab, err := strconv.Atoi(c.Query("tab"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tab query parameter required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cn := &conn{ws: ws}
	h.mu.Lock()
	if old, ok := h.conns[tab]; ok {
		old.ws.Close()
	}
	h.conns[tab] = cn
	h.mu.Unlock()

	h.metrics.AgentConnected(1)
	h.log.Info("agent attached", zap.Int("tab", tab))

	h.readLoop(c.Request.Context(), tab, cn)

	h.mu.Lock()
	if h.conns[tab] == cn {
		delete(h.conns, tab)
	}
	h.mu.Unlock()
	ws.Close()

	h.readiness.Forget(tab)
	h.metrics.AgentConnected(-1)
	h.log.Info("agent detached", zap.Int("tab", tab))
}

func (h *Hub) readLoop(ctx context.Context, tab int, cn *conn) {
	for {
		var msg inbound
		if err := cn.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("agent read ended", zap.Int("tab", tab), zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, tab, msg)
	}
}

// dispatch routes one inbound message. Messages with a malformed or missing
// type are ignored without error.
func (h *Hub) dispatch(ctx context.Context, tab int, msg inbound) {
	switch msg.Type {
	case "ready":
		h.readiness.MarkReady(tab)

	case "navigation":
		ev := coordinator.NavigationEvent{Tab: tab, Frame: msg.Frame, URL: msg.URL}
		// Each navigation runs independently; a slow classifier on one
		// tab never blocks this read loop or other tabs.
		go h.events.HandleNavigation(context.WithoutCancel(ctx), ev)

	case "user_action":
		if msg.Action == nil {
			return
		}
		h.events.HandleUserAction(ctx, tab, *msg.Action)

	case "tab_closed":
		h.events.HandleTabClosed(ctx, tab)

	case "signals":
		h.mu.RLock()
		reply, ok := h.pending[msg.RequestID]
		h.mu.RUnlock()
		if ok {
			select {
			case reply <- msg.Signals:
			default:
			}
		}

	default:
		h.log.Debug("ignoring message with unknown type",
			zap.Int("tab", tab), zap.String("type", msg.Type))
	}
}
