package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColoredFormatter_Format(t *testing.T) {
	f := NewColoredFormatter()
	f.DisableColors = true

	entry := &logrus.Entry{
		Time:    time.Date(2024, 5, 20, 13, 45, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "No container selector matched",
		Data: logrus.Fields{
			"zeta":  true,
			"tick":  3,
			"url":   "https://www.xiaohongshu.com/explore",
			"error": errors.New("boom"),
			"delay": 750 * time.Millisecond,
		},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t,
		`2024-05-20T13:45:00Z WARNING No container selector matched url="https://www.xiaohongshu.com/explore" tick=3 error="boom" delay="750ms" zeta=true`+"\n",
		string(out))
}

func TestDefaultFieldSorting(t *testing.T) {
	keys := defaultFieldSorting([]string{"b", "count", "a", "run_id", "error"})
	assert.Equal(t, []string{"run_id", "count", "error", "a", "b"}, keys)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("count", 2).Info("done")
	assert.Contains(t, buf.String(), `"count":2`)

	logger = New(&buf, "nonsense", "text")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	f, ok := logger.Formatter.(*ColoredFormatter)
	require.True(t, ok)
	assert.True(t, f.DisableColors)
}
