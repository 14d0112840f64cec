package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 9, 23, 8, 30, 0, 0, Beijing)

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"seconds compact", "20250923083000", want, true},
		{"minutes compact", "202509230830", want, true},
		{"iso with offset", "2025-09-23T00:30:00Z", want, true},
		{"iso local", "2025-09-23T08:30:00", want, true},
		{"dashed seconds", "2025-09-23 08:30:00", want, true},
		{"dashed minutes", "2025-09-23 08:30", want, true},
		{"padded", "  202509230830 ", want, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "tomorrow", time.Time{}, false},
		{"short digits", "2509230830", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
				assert.Equal(t, Beijing, got.Location())
			}
		})
	}
}

func TestFormatMinute_TruncatesSeconds(t *testing.T) {
	ts := time.Date(2025, 9, 23, 8, 30, 59, 0, Beijing)
	assert.Equal(t, "2025-09-23 08:30", FormatMinute(&ts))
	assert.Empty(t, FormatMinute(nil))
}

func TestFormatTime_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 9, 23, 23, 59, 1, 0, Beijing)
	got, ok := ParseTime(FormatTime(&ts))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestExtractDOF(t *testing.T) {
	date, ok := ExtractDOF("(FPL-CSN303-IS -A321/M-SDE2E3FGHIRWY/LB1 -ZGGG0800 -N0450F310 DCT -ZUUU0215 -DOF/250923 REG/B5500)")
	require.True(t, ok)
	assert.Equal(t, "2025-09-23", date)

	_, ok = ExtractDOF("(DEP-CSN303-ZGGG0812-ZUUU)")
	assert.False(t, ok)

	_, ok = ExtractDOF("DOF/251340")
	assert.False(t, ok, "month 13 is not a date")
}

func TestInWindow(t *testing.T) {
	date := time.Date(2025, 9, 23, 0, 0, 0, 0, Beijing)

	assert.True(t, InWindow(date, date))
	assert.True(t, InWindow(date.AddDate(0, 0, -1), date))
	assert.True(t, InWindow(date.AddDate(0, 0, 2), date))
	assert.False(t, InWindow(date.AddDate(0, 0, -1).Add(-time.Second), date))
	assert.False(t, InWindow(date.AddDate(0, 0, 2).Add(time.Second), date))
}

func TestValidSOBTSource(t *testing.T) {
	assert.True(t, ValidSOBTSource("202509230800"))
	assert.True(t, ValidSOBTSource("2025-09-23 08:00"))
	assert.False(t, ValidSOBTSource("0800"))
	assert.False(t, ValidSOBTSource(""))
}
