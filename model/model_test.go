package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancasterlink/journeyplanner/model"
)

func mustParseTime(t testing.TB, s string) time.Time {
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestMinutesBetweenSameDay(t *testing.T) {
	from := model.ClockTime{Hour: 8, Minute: 0}
	to := model.ClockTime{Hour: 8, Minute: 30}
	assert.Equal(t, 30.0, model.MinutesBetween(from, to))
}

func TestMinutesBetweenWrapsAtMidnight(t *testing.T) {
	from := model.ClockTime{Hour: 23, Minute: 50}
	to := model.ClockTime{Hour: 0, Minute: 10}
	assert.Equal(t, 20.0, model.MinutesBetween(from, to))
}

func TestMinutesBetweenZeroWhenEqual(t *testing.T) {
	c := model.ClockTime{Hour: 12, Minute: 0, Second: 0}
	assert.Equal(t, 0.0, model.MinutesBetween(c, c))
}

func TestAddMinutesWrapsForwardPastMidnight(t *testing.T) {
	c := model.ClockTime{Hour: 23, Minute: 55}
	result := c.AddMinutes(10)
	assert.Equal(t, model.ClockTime{Hour: 0, Minute: 5, Second: 0}, result)
}

func TestAddMinutesHandlesFractionalSeconds(t *testing.T) {
	c := model.ClockTime{Hour: 8, Minute: 0, Second: 0}
	result := c.AddMinutes(1.5)
	assert.Equal(t, model.ClockTime{Hour: 8, Minute: 1, Second: 30}, result)
}

func TestClockTimeGE(t *testing.T) {
	earlier := model.ClockTime{Hour: 8, Minute: 0}
	later := model.ClockTime{Hour: 8, Minute: 1}
	assert.True(t, later.GE(earlier))
	assert.False(t, earlier.GE(later))
	assert.True(t, earlier.GE(earlier))
}

func TestClockTimeString(t *testing.T) {
	assert.Equal(t, "08:05:09", model.ClockTime{Hour: 8, Minute: 5, Second: 9}.String())
}

func TestNowClockTimeTruncatesToSecond(t *testing.T) {
	c := model.NowClockTime(mustParseTime(t, "2026-07-30T14:32:07Z"))
	assert.Equal(t, model.ClockTime{Hour: 14, Minute: 32, Second: 7}, c)
}
