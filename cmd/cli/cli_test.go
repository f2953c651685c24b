package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBounds(t *testing.T) {
	b, err := parseBounds("45.75, 15.85, 45.85, 16.05")
	require.NoError(t, err)
	assert.Equal(t, 45.75, b.SW.Lat)
	assert.Equal(t, 16.05, b.NE.Lng)

	for _, bad := range []string{"1,2,3", "a,b,c,d", "10,0,5,1"} {
		_, err := parseBounds(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseZooms(t *testing.T) {
	zooms, err := parseZooms([]string{"0", "12", "22"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 12, 22}, zooms)

	_, err = parseZooms([]string{"23"})
	assert.Error(t, err)
	_, err = parseZooms([]string{"x"})
	assert.Error(t, err)
}

func TestEstimateCommand(t *testing.T) {
	var out bytes.Buffer
	estimateCmd.SetOut(&out)
	t.Cleanup(func() { estimateCmd.SetOut(nil) })

	require.NoError(t, runEstimate(estimateCmd, []string{"-85,-180,85,180", "0", "1"}))
	assert.Contains(t, out.String(), "zoom  0: x 0-0, y 0-0, 1 tiles")
	assert.Contains(t, out.String(), "Total: 5 tiles")
}

func TestParseTaskID(t *testing.T) {
	id, err := parseTaskID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseTaskID("0")
	assert.Error(t, err)
}
