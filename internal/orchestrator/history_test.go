package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/signaldesk/internal/contracts"
)

func TestHistory(t *testing.T) {
	h := &History{}
	assert.Equal(t, 0.0, h.SuccessRate())
	assert.Empty(t, h.Latest(5))

	for i := 0; i < 150; i++ {
		h.Add(contracts.CycleResult{Success: i%2 == 0, Stocks: i})
	}

	assert.Len(t, h.Latest(1000), maxHistory)
	latest := h.Latest(2)
	assert.Equal(t, 148, latest[0].Stocks)
	assert.Equal(t, 149, latest[1].Stocks)
	assert.Len(t, h.Failed(), 50)
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTransient, KindOf(stageErr(contracts.StateCollectInfo, "A", KindTransient, ErrNoEvidence)))
	assert.Equal(t, KindCycle, KindOf(assert.AnError))

	err := stageErr(contracts.StateMonitorTrading, "A", KindTransient, assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "[A]")
}
