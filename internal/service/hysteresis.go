package service

import sh "smart_heating"

// Decide applies the hysteresis rule to one area for one cycle.
//
// A disabled area is off, as is one whose resolution forces off. With a
// current reading T, target G and dead band H: T < G−H calls for heat,
// T ≥ G idles, and inside [G−H, G) the previous state is retained so the
// system does not chatter around the setpoint. Without a reading the
// previous state also stands.
func Decide(prev string, enabled, forceOff bool, current *float64, target, hysteresis float64) string {
	if !enabled || forceOff {
		return sh.StateOff
	}
	if current == nil {
		return carry(prev)
	}
	switch {
	case *current < target-hysteresis:
		return sh.StateHeating
	case *current >= target:
		return sh.StateIdle
	default:
		return carry(prev)
	}
}

// carry maps the previous state into the enabled domain: an area that was off
// and has nothing deciding otherwise rests at idle.
func carry(prev string) string {
	if prev == sh.StateHeating {
		return sh.StateHeating
	}
	return sh.StateIdle
}
