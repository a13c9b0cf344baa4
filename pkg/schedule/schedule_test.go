package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_CalculatesNextOccurrence(t *testing.T) {
	s := Every(time.Hour)
	now := time.Date(2026, 2, 8, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 8, 11, 30, 0, 0, time.UTC), s.Next(now))
}

func TestEvery_ShortInterval(t *testing.T) {
	s := Every(5 * time.Minute)
	now := time.Date(2026, 2, 8, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 8, 10, 35, 0, 0, time.UTC), s.Next(now))
}

func TestDaily_BeforeAndAfterFireTime(t *testing.T) {
	s := Daily(9, 0)

	before := time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC), s.Next(before))

	after := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), s.Next(after))
}

func TestDaily_ExactTimeRollsToNextDay(t *testing.T) {
	s := Daily(9, 0)
	now := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), s.Next(now))
}

func TestCron_FiveFieldExpression(t *testing.T) {
	s, err := Cron("*/15 * * * *")
	require.NoError(t, err)

	now := time.Date(2026, 2, 8, 10, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 8, 10, 15, 0, 0, time.UTC), s.Next(now))
}

func TestCron_InvalidExpression(t *testing.T) {
	_, err := Cron("not a cron line")
	assert.Error(t, err)
}
