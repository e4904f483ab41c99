package normalize

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2024, 5, 20, 13, 45, 30, 0, time.UTC)

func TestDateAt_RelativeForms(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"3天前", "2024-05-17 13:45"},
		{"编辑于 3天前", "2024-05-17 13:45"},
		{"2小时前", "2024-05-20 11:45"},
		{"15分钟前", "2024-05-20 13:30"},
		{"刚刚", "2024-05-20 13:45"},
		{"昨天", "2024-05-19 13:45"},
		{"昨天 08:05", "2024-05-19 08:05"},
		{"前天 23:59", "2024-05-18 23:59"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, DateAt(tt.raw, fixedNow))
		})
	}
}

// TestDateAt_DaysAgoKeepsDateOnlyPrecision verifies "N天前" is calendar-day
// arithmetic from the call instant
func TestDateAt_DaysAgoKeepsDateOnlyPrecision(t *testing.T) {
	got := DateAt("3天前", fixedNow)
	assert.Equal(t, fixedNow.AddDate(0, 0, -3).Format("2006-01-02"), got[:10])
}

// TestDate_JustNowUsesCallInstant verifies "刚刚" lands within the minute of
// the call
func TestDate_JustNowUsesCallInstant(t *testing.T) {
	before := time.Now()
	got := Date("刚刚")
	after := time.Now()

	assert.Contains(t, []string{before.Format(Layout), after.Format(Layout)}, got)
}

func TestDateAt_InjectsCurrentYear(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"05-20", "2024-05-20 00:00"},
		{"5/3", "2024-05-03 00:00"},
		{"05月20日", "2024-05-20 00:00"},
		{"12-01 09:30", "2024-12-01 09:30"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, DateAt(tt.raw, fixedNow))
		})
	}
}

// TestDate_YearlessUsesWallClockYear verifies the year comes from the clock
// when no instant is supplied
func TestDate_YearlessUsesWallClockYear(t *testing.T) {
	got := Date("05-20")
	assert.Equal(t, strconv.Itoa(time.Now().Year())+"-05-20 00:00", got)
}

func TestDateAt_AbsoluteWithYear(t *testing.T) {
	assert.Equal(t, "2023-01-02 00:00", DateAt("2023-01-02", fixedNow))
	assert.Equal(t, "2023-11-12 00:00", DateAt("2023年11月12日", fixedNow))
	assert.Equal(t, "2022-07-08 18:00", DateAt("2022/7/8 18:00", fixedNow))
}

func TestDateAt_Unparsable(t *testing.T) {
	tests := []string{
		"上周",
		"not a date",
		"02-30",
		"13-01",
		"昨天 25:00",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, raw, DateAt(raw, fixedNow), "unparsable input should pass through")
		})
	}
}

func TestDateAt_Empty(t *testing.T) {
	assert.Equal(t, UnknownTime, DateAt("", fixedNow))
	assert.Equal(t, UnknownTime, DateAt("   ", fixedNow))
}

func TestNumber(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
	}{
		{"1.2万", 12000},
		{"3.5亿", 350000000},
		{"10万+", 100000},
		{"12,345", 12345},
		{"987", 987},
		{" 42 ", 42},
		{"12赞", 12},
		{"", 0},
		{"abc", 0},
		{"赞", 0},
		{"-5", 0},
		{"99999999999999999999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, Number(tt.raw))
		})
	}
}
