package service

import (
	"testing"

	sh "smart_heating"
)

func TestDecide_DisabledAlwaysOff(t *testing.T) {
	got := Decide(sh.StateHeating, false, false, floatPtr(10), 20, 0.5)
	if got != sh.StateOff {
		t.Fatalf("disabled area: got %q, want %q", got, sh.StateOff)
	}
}

func TestDecide_ForceOffWinsOverColdRoom(t *testing.T) {
	got := Decide(sh.StateHeating, true, true, floatPtr(10), 20, 0.5)
	if got != sh.StateOff {
		t.Fatalf("force off: got %q, want %q", got, sh.StateOff)
	}
}

func TestDecide_BelowBandHeats(t *testing.T) {
	got := Decide(sh.StateIdle, true, false, floatPtr(19.0), 20, 0.5)
	if got != sh.StateHeating {
		t.Fatalf("T=19.0 G=20 H=0.5: got %q, want %q", got, sh.StateHeating)
	}
}

func TestDecide_AtTargetIdles(t *testing.T) {
	got := Decide(sh.StateHeating, true, false, floatPtr(20.0), 20, 0.5)
	if got != sh.StateIdle {
		t.Fatalf("T=20.0 G=20: got %q, want %q", got, sh.StateIdle)
	}
}

func TestDecide_DeadBandRetainsState(t *testing.T) {
	// T in [G-H, G) must never flip the state, no matter how often it is
	// re-evaluated.
	for _, prev := range []string{sh.StateHeating, sh.StateIdle} {
		state := prev
		for i := 0; i < 50; i++ {
			state = Decide(state, true, false, floatPtr(19.7), 20, 0.5)
			if state != prev {
				t.Fatalf("dead band flipped %q to %q on iteration %d", prev, state, i)
			}
		}
	}
}

func TestDecide_NoReadingKeepsPrevious(t *testing.T) {
	if got := Decide(sh.StateHeating, true, false, nil, 20, 0.5); got != sh.StateHeating {
		t.Fatalf("no reading: got %q, want heating retained", got)
	}
	if got := Decide(sh.StateOff, true, false, nil, 20, 0.5); got != sh.StateIdle {
		t.Fatalf("no reading from off: got %q, want %q", got, sh.StateIdle)
	}
}

func TestDecide_ReenabledFromOffInBand(t *testing.T) {
	// An area that was off and re-enabled with T inside the band rests at
	// idle instead of resuming heat.
	got := Decide(sh.StateOff, true, false, floatPtr(19.7), 20, 0.5)
	if got != sh.StateIdle {
		t.Fatalf("re-enabled in band: got %q, want %q", got, sh.StateIdle)
	}
}
