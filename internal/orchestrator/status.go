package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
)

// truncationMark is appended to shortened messages
const truncationMark = "…"

// statusPushTimeout bounds one status or message push
const statusPushTimeout = 5 * time.Second

// StatusPublisher pushes the operator-facing status and last message, skipping
// values equal to the last successfully published one.
// ⭐ SSOT: 최상위 상태 캐시 - 파이프라인 간 공유, mu로 직렬화
type StatusPublisher struct {
	gateway Gateway
	maxLen  int
	logger  *logger.Logger
	metrics *metrics.Recorder

	mu          sync.Mutex
	lastStatus  *string
	lastMessage *string
}

// NewStatusPublisher creates a publisher. Messages longer than maxLen runes are truncated.
func NewStatusPublisher(gw Gateway, maxLen int, log *logger.Logger, rec *metrics.Recorder) *StatusPublisher {
	return &StatusPublisher{
		gateway: gw,
		maxLen:  maxLen,
		logger:  log.Component("status"),
		metrics: rec,
	}
}

// Status publishes the system status unless it is unchanged.
// Push failures are logged, never returned.
func (p *StatusPublisher) Status(ctx context.Context, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastStatus != nil && *p.lastStatus == status {
		return
	}

	if !p.push(ctx, "status", status, p.gateway.PushStatus) {
		return
	}
	p.lastStatus = &status
	p.logger.WithField("status", status).Info("System status updated")
}

// Message publishes the last message, truncated, unless it is unchanged
func (p *StatusPublisher) Message(ctx context.Context, message string) {
	message = Truncate(message, p.maxLen)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastMessage != nil && *p.lastMessage == message {
		return
	}

	if !p.push(ctx, "message", message, p.gateway.PushMessage) {
		return
	}
	p.lastMessage = &message
	p.logger.WithField("length", len([]rune(message))).Debug("Last message updated")
}

func (p *StatusPublisher) push(ctx context.Context, kind, value string, send func(context.Context, string) error) bool {
	ctx, cancel := context.WithTimeout(ctx, statusPushTimeout)
	defer cancel()

	if err := send(ctx, value); err != nil {
		p.metrics.RecordStatusPush(kind, "error")
		p.logger.WithError(err).WithField("kind", kind).Warn("Status push failed")
		return false
	}
	p.metrics.RecordStatusPush(kind, "ok")
	return true
}

// Truncate shortens s to max runes plus a trailing mark. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + truncationMark
}
