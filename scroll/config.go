package scroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/pevans/pagecat/post"
)

// Config tunes the scroll loop.
type Config struct {
	// MaxTicks bounds the number of scroll ticks in one run.
	MaxTicks int `yaml:"max_ticks"`
	// MaxUnchangedHeightTicks stops the run after this many consecutive
	// ticks in which the document height moved less than MinHeightChange.
	MaxUnchangedHeightTicks int `yaml:"max_unchanged_height_ticks"`
	// MaxNoNewRecordTicks stops the run after this many consecutive ticks
	// that added no record.
	MaxNoNewRecordTicks int `yaml:"max_no_new_record_ticks"`

	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	// SlowDown multiplies the delay after a tick with no new record.
	SlowDown float64 `yaml:"slow_down"`
	// SpeedUp multiplies the delay after a tick with new records.
	SpeedUp float64 `yaml:"speed_up"`

	// MinHeightChange is the height difference in pixels below which the
	// document counts as unchanged. Layout jitter must not count as growth.
	MinHeightChange float64 `yaml:"min_height_change"`

	// Settle is how long the page is given after scrolling back to the top.
	Settle time.Duration `yaml:"settle"`

	KeyScheme post.KeyScheme `yaml:"key_scheme"`
}

// DefaultConfig returns the tuning used for Xiaohongshu feeds.
func DefaultConfig() Config {
	return Config{
		MaxTicks:                300,
		MaxUnchangedHeightTicks: 8,
		MaxNoNewRecordTicks:     5,
		MinDelay:                500 * time.Millisecond,
		MaxDelay:                2 * time.Second,
		SlowDown:                1.5,
		SpeedUp:                 0.8,
		MinHeightChange:         50,
		Settle:                  2 * time.Second,
		KeyScheme:               post.KeyTitleAuthor,
	}
}

// Validate checks the configuration can terminate and keeps the delay in
// range.
func (c Config) Validate() error {
	if c.MaxTicks <= 0 {
		return fmt.Errorf("max_ticks must be positive, got %d", c.MaxTicks)
	}
	if c.MaxUnchangedHeightTicks <= 0 {
		return fmt.Errorf("max_unchanged_height_ticks must be positive, got %d", c.MaxUnchangedHeightTicks)
	}
	if c.MaxNoNewRecordTicks <= 0 {
		return fmt.Errorf("max_no_new_record_ticks must be positive, got %d", c.MaxNoNewRecordTicks)
	}
	if c.MinDelay <= 0 {
		return errors.New("min_delay must be positive")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("max_delay %s is below min_delay %s", c.MaxDelay, c.MinDelay)
	}
	if c.SlowDown < 1 {
		return fmt.Errorf("slow_down must be at least 1, got %g", c.SlowDown)
	}
	if c.SpeedUp <= 0 || c.SpeedUp > 1 {
		return fmt.Errorf("speed_up must be in (0, 1], got %g", c.SpeedUp)
	}
	if c.MinHeightChange < 0 {
		return errors.New("min_height_change must not be negative")
	}
	if c.Settle < 0 {
		return errors.New("settle must not be negative")
	}
	if _, err := post.ParseKeyScheme(string(c.KeyScheme)); err != nil {
		return err
	}
	return nil
}
