// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autoscroll

import (
	"testing"
	"time"
)

func TestController_Initial(t *testing.T) {
	c := New(0, 0)
	if !c.Enabled() {
		t.Error("autoscroll should start enabled")
	}
	if c.ShowJump() {
		t.Error("jump affordance should start hidden")
	}
	if c.Tolerance() != DefaultTolerance {
		t.Errorf("Tolerance = %d, want %d", c.Tolerance(), DefaultTolerance)
	}
}

func TestController_OnScrollThreshold(t *testing.T) {
	tests := []struct {
		name         string
		top          int
		client       int
		scrollHeight int
		wantEnabled  bool
	}{
		{"at bottom", 500, 100, 600, true},
		{"exactly at tolerance", 470, 100, 600, true},
		{"one past tolerance", 469, 100, 600, false},
		{"far up", 0, 100, 600, false},
		{"content shorter than view", 0, 100, 50, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(30, time.Millisecond)
			c.OnScroll(tc.top, tc.client, tc.scrollHeight)
			if c.Enabled() != tc.wantEnabled {
				t.Errorf("Enabled = %v, want %v", c.Enabled(), tc.wantEnabled)
			}
			if c.ShowJump() != !tc.wantEnabled {
				t.Errorf("ShowJump = %v, want %v", c.ShowJump(), !tc.wantEnabled)
			}
		})
	}
}

func TestController_ScrolledAwayStopsAutoscroll(t *testing.T) {
	c := New(30, time.Millisecond)
	c.OnScroll(0, 100, 600)

	now := time.Now()
	for i := 0; i < 5; i++ {
		ok, retry := c.ShouldScroll(now.Add(time.Duration(i) * time.Second))
		if ok || retry != 0 {
			t.Fatalf("ShouldScroll = %v, %v while scrolled away", ok, retry)
		}
	}

	// Back within tolerance resumes following.
	c.OnScroll(480, 100, 600)
	if ok, _ := c.ShouldScroll(now.Add(10 * time.Second)); !ok {
		t.Error("ShouldScroll should resume at bottom")
	}
}

func TestController_LastWriteWins(t *testing.T) {
	c := New(30, time.Millisecond)

	c.OnScroll(0, 100, 600) // away
	c.OnSentinel(true)      // sentinel visible again
	if !c.Enabled() {
		t.Error("sentinel after scroll should win")
	}
	if !c.ShowJump() {
		t.Error("sentinel must not touch the jump affordance")
	}

	c.OnSentinel(false)
	c.OnScroll(500, 100, 600) // back at bottom
	if !c.Enabled() || c.ShowJump() {
		t.Error("scroll after sentinel should win")
	}
}

func TestController_RateLimit(t *testing.T) {
	c := New(30, 250*time.Millisecond)
	now := time.Now()

	if ok, _ := c.ShouldScroll(now); !ok {
		t.Fatal("first scroll should be allowed")
	}
	ok, retry := c.ShouldScroll(now.Add(50 * time.Millisecond))
	if ok {
		t.Fatal("second scroll within the interval should be throttled")
	}
	if retry <= 0 || retry > 250*time.Millisecond {
		t.Errorf("retry = %v, want within (0, 250ms]", retry)
	}
	if ok, _ := c.ShouldScroll(now.Add(300 * time.Millisecond)); !ok {
		t.Error("scroll after the interval should be allowed")
	}
}

func TestController_ThrottledCallsDoNotConsumeBudget(t *testing.T) {
	c := New(30, 100*time.Millisecond)
	now := time.Now()
	c.ShouldScroll(now)
	for i := 1; i < 10; i++ {
		c.ShouldScroll(now.Add(time.Duration(i) * time.Millisecond))
	}
	if ok, _ := c.ShouldScroll(now.Add(100 * time.Millisecond)); !ok {
		t.Error("rejected attempts should not push the next slot back")
	}
}

func TestController_JumpToBottomAndReset(t *testing.T) {
	c := New(30, time.Millisecond)
	c.OnScroll(0, 100, 600)
	c.JumpToBottom()
	if !c.Enabled() || c.ShowJump() {
		t.Error("JumpToBottom should re-enable and hide the affordance")
	}

	c.OnScroll(0, 100, 600)
	c.Reset()
	if !c.Enabled() || c.ShowJump() {
		t.Error("Reset should restore the initial state")
	}
}

func TestNewWithTolerance_Zero(t *testing.T) {
	c := NewWithTolerance(0, 0)
	if !c.ScrolledAway(0, 10, 11) {
		t.Error("zero tolerance: one line above bottom is away")
	}
	if c.ScrolledAway(1, 10, 11) {
		t.Error("zero tolerance: at bottom is not away")
	}
}
