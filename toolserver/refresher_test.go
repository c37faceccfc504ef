package toolserver

import (
	"testing"
	"time"
)

func TestParseSchedule_Duration(t *testing.T) {
	sched, err := ParseSchedule("15m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	now := time.Now()
	next := sched.Next(now)
	if diff := next.Sub(now); diff < 14*time.Minute || diff > 16*time.Minute {
		t.Errorf("next wake in %v, want about 15m", diff)
	}
}

func TestParseSchedule_Cron(t *testing.T) {
	for _, expr := range []string{"*/15 * * * *", "0 */15 * * * *", "@hourly"} {
		if _, err := ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q): %v", expr, err)
		}
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"", "not-a-schedule"} {
		if _, err := ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", expr)
		}
	}
}
