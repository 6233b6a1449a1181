package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTimezone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := ParseTimezone(name)
	require.NoError(t, err)
	return loc
}

func TestParseTimezone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: "UTC"},
		{name: "utc", input: "UTC", want: "UTC"},
		{name: "new york", input: "America/New_York", want: "America/New_York"},
		{name: "invalid", input: "Mars/Olympus", want: "UTC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseTimezone(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestParseReference(t *testing.T) {
	ny := mustParseTimezone(t, "America/New_York")

	d, err := ParseReference("2023-07-17", ny)
	require.NoError(t, err)
	assert.True(t, time.Date(2023, 7, 17, 0, 0, 0, 0, ny).Equal(d))
	assert.Equal(t, ny, d.Location())

	d, err = ParseReference("2023-07-17T09:30:00", ny)
	require.NoError(t, err)
	assert.Equal(t, 9, d.Hour())
	assert.Equal(t, ny, d.Location())

	// The instant stays the same; the calendar day is New York's.
	d, err = ParseReference("2023-07-17T02:00:00Z", ny)
	require.NoError(t, err)
	assert.Equal(t, 16, d.Day())
	assert.Equal(t, time.Sunday, d.Weekday())

	_, err = ParseReference("yesterday", ny)
	assert.Error(t, err)
	_, err = ParseReference("", ny)
	assert.Error(t, err)
	_, err = ParseReference("2023-07-17", nil)
	assert.Error(t, err)
}
