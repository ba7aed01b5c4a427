package toolrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
)

// ToolFunc implements one tool. The returned value is sent as the JSON result;
// a returned error becomes a terminal ToolError on the caller side.
type ToolFunc func(ctx context.Context, call *Call) (interface{}, error)

// Server exposes registered tools over websocket (one call per connection)
type Server struct {
	name     string
	tools    map[string]ToolFunc
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *logger.Logger
	metrics  *metrics.Recorder
}

// NewServer creates an empty tool server
func NewServer(name string, log *logger.Logger, rec *metrics.Recorder) *Server {
	return &Server{
		name:  name,
		tools: make(map[string]ToolFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:  log.Component("toolrpc-server").WithField("service", name),
		metrics: rec,
	}
}

// Register adds a tool. Registering a name twice replaces the previous tool.
func (s *Server) Register(name string, fn ToolFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = fn
}

func (s *Server) lookup(name string) (ToolFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.tools[name]
	return fn, ok
}

// ServeHTTP upgrades the connection and serves exactly one call
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		s.logger.WithError(err).Warn("Failed to read call frame")
		return
	}
	if first.Type != frameCall {
		_ = conn.WriteJSON(frame{Type: frameError, Error: fmt.Sprintf("expected call frame, got %q", first.Type)})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	call := &Call{
		Name:    first.Name,
		rawArgs: first.Args,
		conn:    conn,
		pending: make(map[string]chan frame),
	}

	// the reader owns conn reads from here on; a read failure means the caller left
	go call.readLoop(cancel)

	start := time.Now()
	result, err := s.invoke(ctx, call)

	log := s.logger.WithFields(map[string]interface{}{
		"tool":     call.Name,
		"duration": time.Since(start).String(),
	})

	if err != nil {
		log.WithError(err).Warn("Tool call failed")
		s.metrics.RecordToolCall(call.Name, "served_error")
		_ = call.write(frame{Type: frameError, Error: err.Error()})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		_ = call.write(frame{Type: frameError, Error: fmt.Sprintf("marshal result: %v", err)})
		return
	}

	log.Info("Tool call served")
	s.metrics.RecordToolCall(call.Name, "served")
	_ = call.write(frame{Type: frameResult, Result: raw})
}

func (s *Server) invoke(ctx context.Context, call *Call) (result interface{}, err error) {
	fn, ok := s.lookup(call.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	return fn(ctx, call)
}

// Call is the server-side view of one running tool call
type Call struct {
	Name    string
	rawArgs json.RawMessage

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame
	nextID  int
	closed  bool
}

// Bind decodes the call arguments into out
func (c *Call) Bind(out interface{}) error {
	if len(c.rawArgs) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.rawArgs, out); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", c.Name, err)
	}
	return nil
}

// ReportProgress sends a progress notification to the caller
func (c *Call) ReportProgress(progress float64, total *float64, message string) error {
	return c.write(frame{Type: frameProgress, Progress: progress, Total: total, Message: message})
}

// Heartbeat sends a keep-alive progress message the caller ignores
func (c *Call) Heartbeat(note string) error {
	return c.ReportProgress(0, nil, contracts.HeartbeatPrefix+" "+note)
}

// Sample asks the caller to generate text and waits for the answer
func (c *Call) Sample(ctx context.Context, messages []contracts.SamplingMessage, params contracts.SamplingParams) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", fmt.Errorf("caller disconnected")
	}
	c.nextID++
	id := strconv.Itoa(c.nextID)
	ch := make(chan frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(frame{Type: frameSample, ID: id, Messages: messages, Params: &params}); err != nil {
		return "", fmt.Errorf("send sample request: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case reply, ok := <-ch:
		if !ok {
			return "", fmt.Errorf("caller disconnected")
		}
		if reply.Error != "" {
			return "", fmt.Errorf("sampling failed: %s", reply.Error)
		}
		return reply.Text, nil
	}
}

func (c *Call) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// readLoop routes sample results to waiting Sample calls until the connection drops
func (c *Call) readLoop(cancel context.CancelFunc) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		cancel()
	}()

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Type != frameSampleResult {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- f:
			default: // duplicate reply
			}
		}
	}
}
