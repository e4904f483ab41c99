// Package normalize converts the human-readable dates and counts printed on
// feed cards into canonical values. None of its functions fail: input that
// cannot be understood degrades to a sentinel or is passed through.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownTime is the time value of a record whose card shows no date.
const UnknownTime = "未知时间"

// Layout is the format of every timestamp produced by Date.
const Layout = "2006-01-02 15:04"

var (
	daysAgoRe    = regexp.MustCompile(`(\d+)\s*天前`)
	hoursAgoRe   = regexp.MustCompile(`(\d+)\s*小时前`)
	minutesAgoRe = regexp.MustCompile(`(\d+)\s*分钟前`)
	dayWordRe    = regexp.MustCompile(`^(昨天|前天)(?:\s*(\d{1,2}):(\d{2}))?$`)
	hasYearRe    = regexp.MustCompile(`^\d{4}(?:年|-|/)`)
	absoluteRe   = regexp.MustCompile(`^(\d{4})[年\-/](\d{1,2})[月\-/](\d{1,2})日?(?:\s+(\d{1,2}):(\d{2}))?$`)

	wanRe        = regexp.MustCompile(`(\d+(?:\.\d+)?)万`)
	yiRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)亿`)
	leadingIntRe = regexp.MustCompile(`^[+-]?\d+`)
)

// Date normalizes a card date against the current wall-clock time.
func Date(raw string) string {
	return DateAt(raw, time.Now())
}

// DateAt normalizes a card date, resolving relative forms against now.
func DateAt(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return UnknownTime
	}

	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n).Format(Layout)
	}
	if m := hoursAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Hour).Format(Layout)
	}
	if m := minutesAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Minute).Format(Layout)
	}
	if s == "刚刚" {
		return now.Format(Layout)
	}

	if m := dayWordRe.FindStringSubmatch(s); m != nil {
		day := now.AddDate(0, 0, -1)
		if m[1] == "前天" {
			day = now.AddDate(0, 0, -2)
		}
		if m[2] == "" {
			return day.Format(Layout)
		}
		hour, _ := strconv.Atoi(m[2])
		minute, _ := strconv.Atoi(m[3])
		if hour > 23 || minute > 59 {
			return raw
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()).Format(Layout)
	}

	if t, ok := parseAbsolute(withYear(s, now.Year()), now.Location()); ok {
		return t.Format(Layout)
	}

	return raw
}

// withYear prefixes year onto month/day forms that carry none.
func withYear(s string, year int) string {
	if hasYearRe.MatchString(s) {
		return s
	}

	y := strconv.Itoa(year)
	switch {
	case strings.Contains(s, "月") && strings.Contains(s, "日"):
		return y + "年" + s
	case strings.Contains(s, "-"):
		return y + "-" + s
	case strings.Contains(s, "/"):
		return y + "/" + s
	}
	return s
}

func parseAbsolute(s string, loc *time.Location) (time.Time, bool) {
	m := absoluteRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date rolls 02-30 over into March; reject instead.
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Number converts a displayed count such as "1.2万" or "12,345" into an
// integer. Empty or unparsable input yields 0.
func Number(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	if m := wanRe.FindStringSubmatch(s); m != nil {
		return scaled(m[1], 1e4)
	}
	if m := yiRe.FindStringSubmatch(s); m != nil {
		return scaled(m[1], 1e8)
	}

	digits := leadingIntRe.FindString(strings.ReplaceAll(s, ",", ""))
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func scaled(coefficient string, unit float64) int {
	f, err := strconv.ParseFloat(coefficient, 64)
	if err != nil {
		return 0
	}
	v := math.Round(f * unit)
	if v > math.MaxInt64 {
		return 0
	}
	return int(v)
}
