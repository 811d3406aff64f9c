package clock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09:30", "09:30"},
		{"9:30", "09:30"},
		{"17:00", "17:00"},
		{"9:30 AM", "09:30"},
		{"12:00 AM", "00:00"},
		{"12:15 PM", "12:15"},
		{"1:45 PM", "13:45"},
		{"11:59 pm", "23:59"},
		{"  08:05  ", "08:05"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	for _, in := range []string{"", "24:00", "9", "09:60", "13:00 PM", "0:30 AM", "ab:cd", "9:5"} {
		_, err := ParseTimeOfDay(in)
		assert.ErrorIs(t, err, ErrInvalidTimeOfDay, in)
	}
}

func TestFormat12Hour(t *testing.T) {
	assert.Equal(t, "9:00 AM", MustTimeOfDay(9, 0).Format12Hour())
	assert.Equal(t, "12:30 PM", MustTimeOfDay(12, 30).Format12Hour())
	assert.Equal(t, "12:00 AM", MustTimeOfDay(0, 0).Format12Hour())
	assert.Equal(t, "4:30 PM", MustTimeOfDay(16, 30).Format12Hour())
}

func TestTimeOfDay_JSON(t *testing.T) {
	var v struct {
		At TimeOfDay `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"2:15 PM"}`), &v))
	assert.Equal(t, MustTimeOfDay(14, 15), v.At)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"14:15"}`, string(out))
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.June, Day: 1}, d)
	assert.Equal(t, "2024-06-01", d.String())
	assert.Equal(t, "2024-06-02", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))

	start, end := d.Bounds(time.UTC)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, err = ParseDate("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestAt(t *testing.T) {
	d := Date{Year: 2024, Month: time.June, Day: 1}
	got := At(d, MustTimeOfDay(9, 30), time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), got)
}
