package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func TestParseCheckpoint_Invalid(t *testing.T) {
	_, err := ParseCheckpoint("8:45", time.UTC)
	assert.Error(t, err)
}

func TestCheckpoint_TodayAndUntil(t *testing.T) {
	loc := shanghai(t)
	cp, err := ParseCheckpoint("08:45:00", loc)
	require.NoError(t, err)

	now := time.Date(2025, 9, 18, 7, 45, 0, 0, loc)
	assert.WithinDuration(t, time.Date(2025, 9, 18, 8, 45, 0, 0, loc), cp.Today(now), 0)
	assert.Equal(t, time.Hour, cp.Until(now))

	// 이미 지난 경우 즉시 진행
	later := time.Date(2025, 9, 18, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Duration(0), cp.Until(later))
	assert.WithinDuration(t, time.Date(2025, 9, 19, 8, 45, 0, 0, loc), cp.Next(later), 0)
}

func TestCheckpoint_Midnight(t *testing.T) {
	cp, err := ParseCheckpoint("00:00:00", time.UTC)
	require.NoError(t, err)

	now := time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, now, cp.Today(now), 0)
	assert.Equal(t, time.Duration(0), cp.Until(now))
}

func TestCheckpoint_OtherTimezone(t *testing.T) {
	loc := shanghai(t)
	cp, err := ParseCheckpoint("23:59:59", loc)
	require.NoError(t, err)

	// 2025-09-18 12:00 UTC == 20:00 Shanghai
	now := time.Date(2025, 9, 18, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Hour+59*time.Minute+59*time.Second, cp.Until(now))
}

func TestWaitUntil_FakeClock(t *testing.T) {
	loc := shanghai(t)
	cp, err := ParseCheckpoint("09:45:00", loc)
	require.NoError(t, err)

	fake := NewFake(time.Date(2025, 9, 18, 9, 30, 0, 0, loc))
	require.NoError(t, WaitUntil(context.Background(), fake, cp))

	assert.Equal(t, []time.Duration{15 * time.Minute}, fake.Sleeps())
	assert.WithinDuration(t, time.Date(2025, 9, 18, 9, 45, 0, 0, loc), fake.Now(), 0)

	// second wait is a no-op
	require.NoError(t, WaitUntil(context.Background(), fake, cp))
	assert.Len(t, fake.Sleeps(), 1)
}

func TestRealSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTradingDate(t *testing.T) {
	loc := shanghai(t)
	now := time.Date(2025, 9, 17, 18, 30, 0, 0, time.UTC) // 02:30 next day in Shanghai
	assert.Equal(t, "20250918", TradingDate(now, loc))
}
