package pipeline

import (
	"testing"
	"time"
)

func TestNextCronTimeMonthlySchedule(t *testing.T) {
	// 3:00 AM on the 1st of every month.
	after := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	next, err := nextCronTime("0 3 1 * *", after)
	if err != nil {
		t.Fatalf("nextCronTime: %v", err)
	}
	want := time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextCronTimeEveryMinuteMatchesNextBoundary(t *testing.T) {
	after := time.Date(2025, 6, 15, 10, 30, 25, 0, time.UTC)
	next, err := nextCronTime("* * * * *", after)
	if err != nil {
		t.Fatalf("nextCronTime: %v", err)
	}
	want := time.Date(2025, 6, 15, 10, 31, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestParseCronRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "* * *", "a * * * *", "1,x * * * *"} {
		if _, err := parseCron(expr); err == nil {
			t.Fatalf("parseCron(%q) should fail", expr)
		}
	}
}

func TestCronFieldListMatching(t *testing.T) {
	f, err := parseCronField("1,15")
	if err != nil {
		t.Fatalf("parseCronField: %v", err)
	}
	if !f.matches(15) {
		t.Fatal("15 should match field 1,15")
	}
	if f.matches(2) {
		t.Fatal("2 should not match field 1,15")
	}
}
