package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = oldV, oldC, oldD })

	if got, want := String(), "docqa dev (commit: unknown, built: unknown)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-01-01"
	if got, want := String(), "docqa v0.3.0 (commit: abc1234, built: 2026-01-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
