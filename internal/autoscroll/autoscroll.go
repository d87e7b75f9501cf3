// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package autoscroll decides whether the transcript view follows new output.
//
// Two signals feed the decision: scroll position reports and visibility of
// the end-of-transcript sentinel. Whichever arrived last wins. Scrolling to
// the bottom is rate limited so a burst of snapshot updates causes at most
// one scroll per interval, with a trailing scroll for the last update.
package autoscroll

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTolerance is how close to the bottom still counts as at bottom.
	DefaultTolerance = 30

	// DefaultInterval is the minimum time between automatic scrolls.
	DefaultInterval = 250 * time.Millisecond
)

// Controller tracks autoscroll state. Safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	tolerance int
	interval  time.Duration
	enabled   bool
	showJump  bool
	limiter   *rate.Limiter
}

// New creates a controller. Non-positive arguments select the defaults;
// a zero tolerance must be requested with NewWithTolerance.
func New(tolerance int, interval time.Duration) *Controller {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return NewWithTolerance(tolerance, interval)
}

// NewWithTolerance is New with tolerance taken as given, zero included.
func NewWithTolerance(tolerance int, interval time.Duration) *Controller {
	if tolerance < 0 {
		tolerance = 0
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		tolerance: tolerance,
		interval:  interval,
		enabled:   true,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Tolerance returns the bottom tolerance.
func (c *Controller) Tolerance() int {
	return c.tolerance
}

// ScrolledAway reports whether a position is further than tolerance from the bottom.
func (c *Controller) ScrolledAway(top, clientHeight, scrollHeight int) bool {
	return top+clientHeight < scrollHeight-c.tolerance
}

// OnScroll records a scroll position. Away from the bottom, autoscroll is
// disabled and the jump affordance shown; otherwise the reverse.
func (c *Controller) OnScroll(top, clientHeight, scrollHeight int) {
	away := c.ScrolledAway(top, clientHeight, scrollHeight)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = !away
	c.showJump = away
}

// OnSentinel records whether the end-of-transcript sentinel is visible.
// It only drives autoscroll; the jump affordance is left as it was.
func (c *Controller) OnSentinel(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = visible
}

// Enabled reports whether new output should scroll the view.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// ShowJump reports whether the "jump to bottom" affordance should be shown.
func (c *Controller) ShowJump() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showJump
}

// ShouldScroll reports whether an automatic scroll may happen at now.
// When autoscroll is enabled but the rate limit is exhausted, retry is the
// delay after which a trailing scroll should be attempted. Disabled
// autoscroll returns false with no retry.
func (c *Controller) ShouldScroll(now time.Time) (ok bool, retry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return false, 0
	}
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, c.interval
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// JumpToBottom handles an explicit request to go to the bottom. It always
// scrolls, so it bypasses the rate limit, and leaves the view following output.
func (c *Controller) JumpToBottom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
	c.showJump = false
}

// Reset restores the initial state, for example when switching conversations.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
	c.showJump = false
	c.limiter = rate.NewLimiter(rate.Every(c.interval), 1)
}
