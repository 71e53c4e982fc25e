package reply

import "testing"

func TestNextDelay_ExponentialGrowthCappedAtMax(t *testing.T) {
	opts := ReconnectOptions{BaseDelayMs: 1000, MaxDelayMs: 8000, JitterFactor: 0}

	prevDelay := 0
	for attempt := 1; attempt <= 6; attempt++ {
		delay, giveUp := NextDelay(attempt, opts)
		if giveUp {
			t.Fatalf("attempt %d: unexpected giveUp with MaxAttempts=0", attempt)
		}
		if delay > opts.MaxDelayMs {
			t.Errorf("attempt %d: delay %d exceeds MaxDelayMs %d", attempt, delay, opts.MaxDelayMs)
		}
		if delay < prevDelay {
			t.Errorf("attempt %d: delay %d decreased from previous %d", attempt, delay, prevDelay)
		}
		prevDelay = delay
	}
}

func TestNextDelay_GivesUpPastMaxAttempts(t *testing.T) {
	opts := ReconnectOptions{BaseDelayMs: 100, MaxDelayMs: 1000, MaxAttempts: 3}

	for attempt := 1; attempt <= 3; attempt++ {
		if _, giveUp := NextDelay(attempt, opts); giveUp {
			t.Errorf("attempt %d: unexpected giveUp before exceeding MaxAttempts", attempt)
		}
	}
	if _, giveUp := NextDelay(4, opts); !giveUp {
		t.Error("attempt 4: expected giveUp = true past MaxAttempts")
	}
}

func TestNextDelay_UnlimitedAttemptsWhenZero(t *testing.T) {
	opts := ReconnectOptions{BaseDelayMs: 100, MaxDelayMs: 1000, MaxAttempts: 0}
	if _, giveUp := NextDelay(1000, opts); giveUp {
		t.Error("expected no giveUp when MaxAttempts = 0")
	}
}

func TestNextDelay_ConfigurableFactor(t *testing.T) {
	opts := ReconnectOptions{BaseDelayMs: 100, MaxDelayMs: 100_000, Factor: 3, JitterFactor: 0}

	delay, giveUp := NextDelay(3, opts)
	if giveUp {
		t.Fatal("unexpected giveUp")
	}
	want := 100 * 3 * 3 // base * factor^(attempt-1)
	if delay != want {
		t.Errorf("NextDelay(3, Factor=3) = %d, want %d", delay, want)
	}
}

func TestNextDelay_JitterStaysWithinBounds(t *testing.T) {
	opts := ReconnectOptions{BaseDelayMs: 1000, MaxDelayMs: 60_000, JitterFactor: 0.2}
	for attempt := 1; attempt <= 5; attempt++ {
		delay, _ := NextDelay(attempt, opts)
		if delay < 0 {
			t.Errorf("attempt %d: negative delay %d", attempt, delay)
		}
		if delay > opts.MaxDelayMs*2 {
			t.Errorf("attempt %d: delay %d implausibly large", attempt, delay)
		}
	}
}
