// Package logging configures logrus for pagecat.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ColoredFormatter prints one line per entry: time, level, message, then the
// fields as key=value with values JSON-encoded.
type ColoredFormatter struct {
	TimestampFormat string
	// SortingFunc orders field keys. Nil sorts them alphabetically.
	SortingFunc func([]string) []string
	// DisableColors is set when output is not a terminal.
	DisableColors bool
}

// NewColoredFormatter creates a formatter with RFC3339 timestamps and the
// session fields sorted first.
func NewColoredFormatter() *ColoredFormatter {
	return &ColoredFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     defaultFieldSorting,
	}
}

// Format implements logrus.Formatter.
func (f *ColoredFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	levelColor := getLevelColor(entry.Level)
	timeColor := color.New(color.FgYellow)
	valueColor := color.New(color.FgWhite)
	if f.DisableColors {
		for _, c := range []*color.Color{levelColor, timeColor, valueColor} {
			c.DisableColor()
		}
	}

	b.WriteString(timeColor.Sprint(entry.Time.Format(f.TimestampFormat)))
	b.WriteByte(' ')
	b.WriteString(levelColor.Sprintf("%-7s", strings.ToUpper(entry.Level.String())))
	b.WriteByte(' ')
	b.WriteString(levelColor.Sprint(entry.Message))

	for _, k := range keys {
		fieldColor := color.New(color.FgCyan)
		if isImportantField(k) {
			fieldColor = color.New(color.FgGreen)
		}
		if f.DisableColors {
			fieldColor.DisableColor()
		}

		b.WriteByte(' ')
		b.WriteString(fieldColor.Sprintf("%s=", k))
		b.WriteString(valueColor.Sprint(formatValue(entry.Data[k])))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func getLevelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return color.New(color.FgBlue)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

var priorityFields = map[string]int{
	"run_id": 1,
	"url":    2,
	"tick":   3,
	"count":  4,
	"error":  5,
}

func isImportantField(field string) bool {
	return field == "run_id" || field == "url" || field == "error"
}

func defaultFieldSorting(keys []string) []string {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priorityFields[keys[i]], priorityFields[keys[j]]
		switch {
		case pi != 0 && pj != 0:
			return pi < pj
		case pi != 0:
			return true
		case pj != 0:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// New creates a logger writing to w. format "json" selects logrus's JSON
// formatter; anything else the colored one. An unknown level falls back to
// info.
func New(w io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		f := NewColoredFormatter()
		f.DisableColors = !isTerminal(w)
		logger.SetFormatter(f)
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
