package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	p := Noop()

	ctx, span := p.Start(context.Background(), "generate")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabled(t *testing.T) {
	p, err := New(true, "test")
	require.NoError(t, err)

	_, span := p.Start(context.Background(), "recompute")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	_, span := p.Start(context.Background(), "noop")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}
