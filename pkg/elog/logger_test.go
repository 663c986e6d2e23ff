package elog

import "testing"

func TestNilProgressIgnoresUpdates(t *testing.T) {
	np := &nilProgress{total: 100}
	// Increment and Finish on a disabled-TTY progress must not panic
	// and must not retain any state worth asserting on — they are
	// pure no-ops so extraction works identically with DisableTTY set.
	np.Increment(42)
	np.Finish(true)
	np.Finish(false)
}

func TestCLINewProgressReturnsNilProgressWhenTTYDisabled(t *testing.T) {
	log := &CLI{DisableTTY: true}
	p := log.NewProgress("extracting /bin/sh", "KiB", 1024)
	if _, ok := p.(*nilProgress); !ok {
		t.Fatalf("got %T, want *nilProgress", p)
	}
}
