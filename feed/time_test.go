package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeUnmarshalFeedLayout(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T12:30:45"`), &ts))
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 45, 0, time.Local), ts.Time)
}

func TestTimeUnmarshalRFC3339Fallback(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T12:30:45Z"`), &ts))
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC), ts.Time)
}

func TestTimeUnmarshalNull(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestTimeUnmarshalInvalid(t *testing.T) {
	var ts Time
	assert.Error(t, json.Unmarshal([]byte(`"03/01/2026"`), &ts))
}

func TestTimeMarshal(t *testing.T) {
	ts := Time{Time: time.Date(2026, 3, 1, 12, 30, 45, 0, time.Local)}
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01T12:30:45"`, string(data))

	data, err = json.Marshal(Time{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}
