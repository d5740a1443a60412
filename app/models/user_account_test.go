package models

import "testing"

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "free", want: "free"},
		{in: "premium", want: "premium"},
		{in: "PREMIUM", want: "premium"},
		{in: " premium ", want: "premium"},
		{in: "invalid", want: "free"},
		{in: "", want: "free"},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanIsPremium(t *testing.T) {
	if !PlanIsPremium("premium") {
		t.Fatalf("expected premium to be premium")
	}
	if PlanIsPremium("free") || PlanIsPremium("unknown") {
		t.Fatalf("expected non-premium plans to report false")
	}
}

func TestUserAccountValidate(t *testing.T) {
	u := &UserAccount{
		UID:   "u_123",
		Name:  "Test User",
		Email: "test@example.com",
		Plan:  PlanFree,
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	u.Email = "not-an-email"
	if err := u.Validate(); err == nil {
		t.Fatalf("expected validation error for invalid email")
	}

	u.Email = "test@example.com"
	u.Plan = "gold"
	if err := u.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown plan")
	}
}
