package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumericFlightNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"303", "303", true},
		{"CSN303", "303", true},
		{"CZ303", "303", true},
		{"3U8888", "8888", true},
		{"0303A", "0303A", true},
		{" ces202 ", "202", true},
		{"", "", false},
		{"ABCD", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NumericFlightNumber(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposeCallsign(t *testing.T) {
	cs, ok := ComposeCallsign("csn", "303")
	assert.True(t, ok)
	assert.Equal(t, "CSN303", cs)

	_, ok = ComposeCallsign("", "303")
	assert.False(t, ok, "airline is required")

	_, ok = ComposeCallsign("CZ", "303")
	assert.False(t, ok, "IATA designators are not ICAO")
}

func TestPlanCallsign(t *testing.T) {
	t.Run("verbatim column", func(t *testing.T) {
		cs, ok := PlanCallsign("cca101", "", "")
		assert.True(t, ok)
		assert.Equal(t, "CCA101", cs)
	})

	t.Run("short column falls back to composition", func(t *testing.T) {
		cs, ok := PlanCallsign("101", "CCA", "101")
		assert.True(t, ok)
		assert.Equal(t, "CCA101", cs)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := PlanCallsign("", "", "101")
		assert.False(t, ok)
	})
}

func TestSplitCallsign(t *testing.T) {
	airline, num, ok := SplitCallsign("CES202")
	assert.True(t, ok)
	assert.Equal(t, "CES", airline)
	assert.Equal(t, "202", num)

	_, _, ok = SplitCallsign("B5500")
	assert.False(t, ok)
}
