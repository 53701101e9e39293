package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_HalfHourly(t *testing.T) {
	ref := time.Date(2026, 3, 1, 10, 40, 0, 0, time.UTC)

	info, err := GetTriggerInfo("*/30 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 20*time.Minute, info.TimeUntilNext)
	assert.Equal(t, 10*time.Minute, info.TimeSinceLast)
}

func TestGetTriggerInfo_Daily(t *testing.T) {
	ref := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 3 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), info.Last)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("*/30 * * * *"))
	require.NoError(t, Validate("@hourly"))
	require.Error(t, Validate("bad cron"))
}
