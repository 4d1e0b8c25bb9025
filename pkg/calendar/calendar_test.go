package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", TimeOfDay{9, 0, 0}, false},
		{"23:59:59", TimeOfDay{23, 59, 59}, false},
		{"00:00:00", TimeOfDay{}, false},
		{"9:00", TimeOfDay{}, true},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"12", TimeOfDay{}, true},
		{"ab:cd", TimeOfDay{}, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	assert.Equal(t, "09:30:00", MustParseTimeOfDay("09:30").String())
}

func TestNextWeekday(t *testing.T) {
	c := NewInLocation(time.UTC)
	// 2024-01-01 是周一
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	d, ok := c.NextWeekday(start, time.Monday, nil)
	require.True(t, ok)
	assert.Equal(t, Date{2024, time.January, 1}, d)

	d, ok = c.NextWeekday(start, time.Sunday, nil)
	require.True(t, ok)
	assert.Equal(t, Date{2024, time.January, 7}, d)

	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	_, ok = c.NextWeekday(start, time.Saturday, &end)
	assert.False(t, ok, "窗口内没有周六")
}

func TestCompose_AcrossDST(t *testing.T) {
	c, err := New("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 美东进入夏令时，前后两周同一墙上时刻的绝对间隔不是 7*24h
	before := c.Compose(Date{2024, time.March, 4}, MustParseTimeOfDay("09:00"))
	after := c.Compose(Date{2024, time.March, 11}, MustParseTimeOfDay("09:00"))

	assert.Equal(t, 7*24*time.Hour-time.Hour, after.Sub(before))
	assert.Equal(t, 9, after.In(c.Location()).Hour())
}

func TestOccurrenceEnd_Overnight(t *testing.T) {
	c := NewInLocation(time.UTC)
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)

	end, err := c.OccurrenceEnd(start, "22:00:00", "02:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), end)

	d, err := c.Duration(start, "22:00", "22:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d, "起止相同视为整日跨夜")

	sameDay := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end, err = c.OccurrenceEnd(sameDay, "09:00", "12:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC), end)
}

func TestMinutesRangeAndOverlaps(t *testing.T) {
	s, e, err := MinutesRange("22:00", "02:00")
	require.NoError(t, err)
	assert.Equal(t, 22*60, s)
	assert.Equal(t, 26*60, e)

	assert.True(t, Overlaps(540, 600, 570, 660))
	assert.False(t, Overlaps(540, 600, 600, 660), "首尾相接不算重叠")
}

func TestDateAddDaysAcrossMonth(t *testing.T) {
	d := Date{2024, time.January, 29}.AddDays(7)
	assert.Equal(t, Date{2024, time.February, 5}, d)
	assert.True(t, Date{2024, time.January, 31}.Before(d))
	assert.Equal(t, "2024-02-05", d.String())
}
