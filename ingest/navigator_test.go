package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigatorFindsArray(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`{"name":"ciel","concepts":[{"id":"1"},{"id":"2"}]}`))
	require.NoError(t, nav.Begin())

	scan, err := nav.ToArray("concepts", "")
	require.NoError(t, err)
	require.Equal(t, ArrayFound, scan)

	var ids []string
	for nav.More() {
		var rec struct {
			ID string `json:"id"`
		}
		require.NoError(t, nav.Decode(&rec))
		ids = append(ids, rec.ID)
	}
	require.NoError(t, nav.EndArray())
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestNavigatorSkipsUnknownStructure(t *testing.T) {
	doc := `{
		"meta": {"nested": {"deep": [1, 2, {"x": []}]}},
		"tags": ["a", "b"],
		"count": 42,
		"concepts": [{"id": "1"}]
	}`
	nav := NewNavigator(strings.NewReader(doc))
	require.NoError(t, nav.Begin())

	scan, err := nav.ToArray("concepts", "")
	require.NoError(t, err)
	assert.Equal(t, ArrayFound, scan)
}

func TestNavigatorAbsentField(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`{"name":"ciel"}`))
	require.NoError(t, nav.Begin())

	scan, err := nav.ToArray("concepts", "")
	require.NoError(t, err)
	assert.Equal(t, ArrayAbsent, scan)
}

func TestNavigatorStopField(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`{"mappings":[{"map_type":"SAME-AS"}],"other":1}`))
	require.NoError(t, nav.Begin())

	scan, err := nav.ToArray("concepts", "mappings")
	require.NoError(t, err)
	require.Equal(t, ArrayStopped, scan)

	// the stopped-at field is still reachable on the same stream
	scan, err = nav.ToArray("mappings", "")
	require.NoError(t, err)
	require.Equal(t, ArrayFound, scan)
	require.True(t, nav.More())
}

func TestNavigatorReentrant(t *testing.T) {
	doc := `{"concepts":[{"id":"1"}],"between":true,"mappings":[{"map_type":"SAME-AS"}]}`
	nav := NewNavigator(strings.NewReader(doc))
	require.NoError(t, nav.Begin())

	scan, err := nav.ToArray("concepts", "mappings")
	require.NoError(t, err)
	require.Equal(t, ArrayFound, scan)
	for nav.More() {
		var rec map[string]any
		require.NoError(t, nav.Decode(&rec))
	}
	require.NoError(t, nav.EndArray())

	scan, err = nav.ToArray("mappings", "")
	require.NoError(t, err)
	assert.Equal(t, ArrayFound, scan)
}

func TestNavigatorFieldNotAnArray(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`{"concepts":{"id":"1"}}`))
	require.NoError(t, nav.Begin())

	_, err := nav.ToArray("concepts", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a list")
}

func TestNavigatorTruncatedDocument(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`{"meta":{"nested":`))
	require.NoError(t, nav.Begin())

	_, err := nav.ToArray("concepts", "")
	assert.Error(t, err)
}

func TestNavigatorRejectsNonObjectDocument(t *testing.T) {
	nav := NewNavigator(strings.NewReader(`[1,2,3]`))
	err := nav.Begin()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with an object")
}
