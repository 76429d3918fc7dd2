package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
	}{
		{"2024-11-15", NewDate(2024, time.November, 15)},
		{"2024-1-5", NewDate(2024, time.January, 5)},
		{"2024/01/05", NewDate(2024, time.January, 5)},
		{"2024-11-15T09:30:00Z", NewDate(2024, time.November, 15)},
		{"15/11/2024", NewDate(2024, time.November, 15)},
		{"5/11/2024", NewDate(2024, time.November, 5)},
		{"11/5/2024", NewDate(2024, time.May, 11)},
		{"11/25/2024", NewDate(2024, time.November, 25)},
		{"05-11-2024", NewDate(2024, time.November, 5)},
		{"15.11.2024", NewDate(2024, time.November, 15)},
		{"15.11.24", NewDate(2024, time.November, 15)},
		{"5/11/24", NewDate(2024, time.November, 5)},
		{"5 Nov 2024", NewDate(2024, time.November, 5)},
		{"05 November 2024", NewDate(2024, time.November, 5)},
		{"Nov 5, 2024", NewDate(2024, time.November, 5)},
		{"05-Nov-2024", NewDate(2024, time.November, 5)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseDate(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want.Value, got.Value)
			assert.Equal(t, tc.in, got.Raw)
		})
	}
}

func TestParseDate_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "soon", "32/13/2024", "2024-13-01"} {
		got, ok := ParseDate(in)
		assert.False(t, ok, in)
		assert.False(t, got.IsValid(), in)
	}
}

func TestDate_JSON(t *testing.T) {
	var holder struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"5/11/2024"}`), &holder))
	require.True(t, holder.Date.IsValid())
	assert.Equal(t, "2024-11-05", holder.Date.String())

	out, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-11-05"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"date":"someday"}`), &holder))
	assert.False(t, holder.Date.IsValid())
	assert.Equal(t, "someday", holder.Date.String())

	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &holder))
	assert.True(t, holder.Date.IsZero())
}
