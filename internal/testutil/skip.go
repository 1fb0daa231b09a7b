// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"
)

// SkipIfNoWallClock skips the test if LIVEDESK_TEST_SKIP_WALLCLOCK is set.
// Use this for tests that sleep on real timers, which are flaky on
// heavily loaded CI runners.
func SkipIfNoWallClock(t *testing.T) {
	t.Helper()
	if os.Getenv("LIVEDESK_TEST_SKIP_WALLCLOCK") != "" {
		t.Skip("skipping wall-clock test: LIVEDESK_TEST_SKIP_WALLCLOCK is set")
	}
}
