package rodpage

import (
	"errors"
	"io"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/pevans/pagecat/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ page.Page          = (*Page)(nil)
	_ page.FaultReporter = (*Page)(nil)
	_ io.Closer          = (*Page)(nil)
	_ page.Opener        = (*Browser)(nil)
)

func TestExceptionText(t *testing.T) {
	tests := []struct {
		name  string
		event *proto.RuntimeExceptionThrown
		want  string
	}{
		{"no details", &proto.RuntimeExceptionThrown{}, "unknown error"},
		{
			"description preferred",
			&proto.RuntimeExceptionThrown{ExceptionDetails: &proto.RuntimeExceptionDetails{
				Text:      "Uncaught",
				Exception: &proto.RuntimeRemoteObject{Description: "TypeError: a is undefined"},
			}},
			"TypeError: a is undefined",
		},
		{
			"text fallback",
			&proto.RuntimeExceptionThrown{ExceptionDetails: &proto.RuntimeExceptionDetails{Text: "Uncaught"}},
			"Uncaught",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exceptionText(tt.event))
		})
	}
}

// TestFaultQueue_IgnoresFaultsBeforeSession verifies a script error thrown
// while the page loads is not delivered to the session that starts later
func TestFaultQueue_IgnoresFaultsBeforeSession(t *testing.T) {
	q := newFaultQueue()

	assert.False(t, q.report(errors.New("ReferenceError: analytics is not defined")))

	faults := q.arm()
	select {
	case err := <-faults:
		t.Fatalf("unexpected fault before session: %v", err)
	default:
	}

	require.True(t, q.report(page.ErrOffline))
	assert.False(t, q.report(page.ErrPageScript), "queue holds one fault")
	assert.Equal(t, page.ErrOffline, <-faults)
}

// TestFaultQueue_RearmDiscardsStaleFault verifies a fault nobody read in one
// session does not fail the next
func TestFaultQueue_RearmDiscardsStaleFault(t *testing.T) {
	q := newFaultQueue()
	q.arm()
	require.True(t, q.report(page.ErrPageScript))

	faults := q.arm()
	select {
	case err := <-faults:
		t.Fatalf("stale fault delivered: %v", err)
	default:
	}
}
