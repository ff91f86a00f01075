package payroll

import (
	"testing"
	"time"
)

func rate(rateType string, amount float64) *PayRate {
	return &PayRate{
		ID:         1,
		TeacherID:  10,
		RateType:   rateType,
		Amount:     amount,
		ActiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompensationAmountPerLesson(t *testing.T) {
	amount, skip := compensationAmount(rate(RatePerLesson, 350), 7)
	if skip != "" {
		t.Fatalf("unexpected skip: %s", skip)
	}
	if amount != 350 {
		t.Fatalf("expected flat 350, got %v", amount)
	}
}

func TestCompensationAmountPerPresent(t *testing.T) {
	amount, skip := compensationAmount(rate(RatePerPresent, 50), 7)
	if skip != "" {
		t.Fatalf("unexpected skip: %s", skip)
	}
	if amount != 350 {
		t.Fatalf("expected 50*7=350, got %v", amount)
	}
}

func TestCompensationAmountSkips(t *testing.T) {
	cases := []struct {
		name    string
		rate    *PayRate
		present int
	}{
		{"no rate", nil, 5},
		{"nobody present", rate(RatePerLesson, 350), 0},
		{"zero amount", rate(RatePerPresent, 0), 5},
		{"unknown type", rate("HOURLY", 100), 5},
	}
	for _, tc := range cases {
		amount, skip := compensationAmount(tc.rate, tc.present)
		if skip == "" {
			t.Fatalf("%s: expected a skip reason", tc.name)
		}
		if amount != 0 {
			t.Fatalf("%s: expected zero amount, got %v", tc.name, amount)
		}
	}
}
