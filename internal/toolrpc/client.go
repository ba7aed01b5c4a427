package toolrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/tracing"
)

// Client invokes tools on one remote service.
// Each Call opens its own session, so a Client is safe for concurrent use.
// ⭐ SSOT: 원격 tool 서비스 호출은 이 클라이언트에서만
type Client struct {
	service string
	url     string
	dialer  *websocket.Dialer
	logger  *logger.Logger
	metrics *metrics.Recorder
	tracer  *tracing.Provider
}

var _ contracts.ToolInvoker = (*Client)(nil)

// NewClient creates a client for the service listening at url (ws:// or wss://)
func NewClient(service, url string, log *logger.Logger, rec *metrics.Recorder, tp *tracing.Provider) *Client {
	if tp == nil {
		tp = tracing.Noop()
	}
	return &Client{
		service: service,
		url:     url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger:  log.Component("toolrpc").WithField("service", service),
		metrics: rec,
		tracer:  tp,
	}
}

// Call invokes tool with args and blocks until the terminal frame arrives.
// Progress frames go to h.Progress and sample frames to h.Sampling. A handler
// error is logged and does not end the call.
func (c *Client) Call(ctx context.Context, tool string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "toolrpc.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.service", c.service),
		attribute.String("tool.name", tool),
	)

	result, err := c.call(ctx, tool, args, h)

	outcome := "ok"
	var toolErr *ToolError
	switch {
	case errors.As(err, &toolErr):
		outcome = "tool_error"
	case err != nil:
		outcome = "transport_error"
	}
	c.metrics.RecordToolCall(tool, outcome)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return result, err
}

func (c *Client) call(ctx context.Context, tool string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", tool, err)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.service, err)
	}
	defer conn.Close()

	// unblock ReadJSON when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(frame{Type: frameCall, Name: tool, Args: rawArgs}); err != nil {
		return nil, fmt.Errorf("send %s call: %w", tool, err)
	}

	c.logger.WithField("tool", tool).Debug("Tool call started")

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read %s frame: %w", tool, err)
		}

		switch f.Type {
		case frameProgress:
			if h.Progress == nil {
				continue
			}
			if err := h.Progress.OnProgress(ctx, f.Progress, f.Total, f.Message); err != nil {
				c.logger.WithError(err).WithField("tool", tool).Warn("Progress handler failed")
			}

		case frameSample:
			reply := frame{Type: frameSampleResult, ID: f.ID}
			if h.Sampling == nil {
				reply.Error = "client does not support sampling"
			} else {
				params := contracts.SamplingParams{}
				if f.Params != nil {
					params = *f.Params
				}
				text, err := h.Sampling.OnSample(ctx, f.Messages, params)
				if err != nil {
					c.logger.WithError(err).WithField("tool", tool).Warn("Sampling handler failed")
					reply.Error = err.Error()
				} else {
					reply.Text = text
				}
			}
			if err := conn.WriteJSON(reply); err != nil {
				return nil, fmt.Errorf("send sample result: %w", err)
			}

		case frameResult:
			c.logger.WithField("tool", tool).Debug("Tool call completed")
			return f.Result, nil

		case frameError:
			return nil, &ToolError{Tool: tool, Message: f.Error}

		default:
			c.logger.WithField("type", f.Type).Debug("Ignoring unknown frame")
		}
	}
}
