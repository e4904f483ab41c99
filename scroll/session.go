package scroll

import (
	"math"
	"time"

	"github.com/pevans/pagecat/dedup"
	"github.com/pevans/pagecat/extract"
)

// State is the lifecycle position of a scroll session.
type State string

const (
	StateRunning        State = "running"
	StateStoppingSettle State = "stopping_settle"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// StopReason names the heuristic that ended a run.
type StopReason string

const (
	StopNone            StopReason = ""
	StopHeightUnchanged StopReason = "height_unchanged"
	StopTickBudget      StopReason = "tick_budget"
	StopNoNewRecords    StopReason = "no_new_records"
)

// Session is the mutable state of one run.
type Session struct {
	Tick                 int
	LastHeight           float64
	UnchangedHeightTicks int
	NoNewRecordTicks     int
	Delay                time.Duration
	Records              *dedup.Accumulator
	State                State

	// Mismatches counts passes in which no container selector matched.
	Mismatches     int
	LastDiagnostic *extract.Diagnostic
}

// NewSession creates a running session at the minimum delay.
func NewSession(cfg Config) *Session {
	return &Session{
		Delay:   cfg.MinDelay,
		Records: dedup.New(cfg.KeyScheme),
		State:   StateRunning,
	}
}

// ObserveHeight updates the unchanged-height counter with the height
// measured after a tick.
func (s *Session) ObserveHeight(height float64, cfg Config) {
	if math.Abs(height-s.LastHeight) < cfg.MinHeightChange {
		s.UnchangedHeightTicks++
	} else {
		s.UnchangedHeightTicks = 0
	}
	s.LastHeight = height
}

// ObserveNew updates the no-new-record counter and the delay with the
// number of records a tick added.
func (s *Session) ObserveNew(added int, cfg Config) {
	if added == 0 {
		s.NoNewRecordTicks++
	} else {
		s.NoNewRecordTicks = 0
	}
	s.Delay = NextDelay(s.Delay, added, cfg)
}

// Progress returns the completion percentage, which never exceeds 100.
func (s *Session) Progress(cfg Config) float64 {
	return math.Min(float64(s.Tick)/float64(cfg.MaxTicks)*100, 100)
}

// NextDelay returns the delay before the next tick: slower when the tick
// added nothing, faster otherwise, always within [MinDelay, MaxDelay].
func NextDelay(current time.Duration, added int, cfg Config) time.Duration {
	var next time.Duration
	if added == 0 {
		next = time.Duration(float64(current) * cfg.SlowDown)
	} else {
		next = time.Duration(float64(current) * cfg.SpeedUp)
	}
	if next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	if next < cfg.MinDelay {
		next = cfg.MinDelay
	}
	return next
}

// ShouldStop reports whether any stop heuristic holds. They are checked
// independently; the first that holds is reported.
func ShouldStop(s *Session, cfg Config) (bool, StopReason) {
	switch {
	case s.UnchangedHeightTicks >= cfg.MaxUnchangedHeightTicks:
		return true, StopHeightUnchanged
	case s.Tick >= cfg.MaxTicks:
		return true, StopTickBudget
	case s.NoNewRecordTicks >= cfg.MaxNoNewRecordTicks:
		return true, StopNoNewRecords
	}
	return false, StopNone
}
