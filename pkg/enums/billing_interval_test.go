package enums

import "testing"

func TestParseBillingInterval(t *testing.T) {
	for _, valid := range []string{"monthly", "quarterly", "semi_annually", "annually"} {
		interval, err := ParseBillingInterval(valid)
		if err != nil {
			t.Fatalf("%s: %v", valid, err)
		}
		if interval.String() != valid {
			t.Fatalf("expected %s, got %s", valid, interval)
		}
	}
	if _, err := ParseBillingInterval("weekly"); err == nil {
		t.Fatalf("expected error for unknown interval")
	}
}

func TestGatewayPeriod(t *testing.T) {
	cases := map[BillingInterval]string{
		BillingIntervalMonthly:      "monthly",
		BillingIntervalQuarterly:    "quarterly",
		BillingIntervalSemiAnnually: "half_yearly",
		BillingIntervalAnnually:     "yearly",
	}
	for interval, want := range cases {
		if got := interval.GatewayPeriod(); got != want {
			t.Fatalf("%s: expected %s, got %s", interval, want, got)
		}
	}
}

func TestMonthsPerTerm(t *testing.T) {
	cases := map[BillingInterval]int{
		BillingIntervalMonthly:      1,
		BillingIntervalQuarterly:    3,
		BillingIntervalSemiAnnually: 6,
		BillingIntervalAnnually:     12,
	}
	for interval, want := range cases {
		if got := interval.MonthsPerTerm(); got != want {
			t.Fatalf("%s: expected %d, got %d", interval, want, got)
		}
	}
}
