package xero

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *time.Time
		wantErr  bool
	}{
		{name: "empty", input: "", expected: nil},
		{name: "ms date with offset", input: "/Date(1690484980033+0000)/", expected: timePtr(time.UnixMilli(1690484980033).UTC())},
		{name: "ms date without offset", input: "/Date(0)/", expected: timePtr(time.Unix(0, 0).UTC())},
		{name: "iso without zone", input: "2024-02-03T04:05:06", expected: timePtr(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))},
		{name: "iso with zone", input: "2024-02-03T04:05:06+02:00", expected: timePtr(time.Date(2024, 2, 3, 2, 5, 6, 0, time.UTC))},
		{name: "date only", input: "2024-02-03", expected: timePtr(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestWhereModifiedSince(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "UpdatedDateUTC>=DateTime(2025,01,02,03,04,05)", WhereModifiedSince(ts))
}

func timePtr(t time.Time) *time.Time { return &t }
