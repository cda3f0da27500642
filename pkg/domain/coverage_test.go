package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateCoverage(t *testing.T) {
	cases := []struct {
		name     string
		required string
		reserved string
		percent  string
		shortage string
		status   CoverageStatus
	}{
		{"zero requirement counts as full", "0", "0", "100", "0", CoverageFull},
		{"zero requirement ignores reserved", "0", "5", "100", "0", CoverageFull},
		{"nothing reserved", "100", "0", "0", "100", CoverageNone},
		{"half reserved", "100", "50", "50", "50", CoveragePartial},
		{"exactly covered", "80", "80", "100", "0", CoverageFull},
		{"over reserved", "50", "60", "120", "0", CoverageOver},
		{"fractional quantities", "2.5", "1.25", "50", "1.25", CoveragePartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateCoverage(dec(tc.required), dec(tc.reserved))
			if !got.Percent.Equal(dec(tc.percent)) {
				t.Fatalf("percent = %s, want %s", got.Percent, tc.percent)
			}
			if !got.Shortage.Equal(dec(tc.shortage)) {
				t.Fatalf("shortage = %s, want %s", got.Shortage, tc.shortage)
			}
			if got.Status != tc.status {
				t.Fatalf("status = %s, want %s", got.Status, tc.status)
			}
		})
	}
}

func TestCanModifyReservations(t *testing.T) {
	allowed := []WorkOrderStatus{WorkOrderStatusPlanned, WorkOrderStatusReleased, WorkOrderStatusInProgress}
	for _, s := range allowed {
		if !CanModifyReservations(s) {
			t.Fatalf("expected %s to allow reservation changes", s)
		}
	}
	frozen := []WorkOrderStatus{WorkOrderStatusCompleted, WorkOrderStatusCancelled, WorkOrderStatusOnHold, WorkOrderStatus("unknown")}
	for _, s := range frozen {
		if CanModifyReservations(s) {
			t.Fatalf("expected %s to freeze reservation changes", s)
		}
	}
}

func TestMaterialDemandRemainingQty(t *testing.T) {
	m := MaterialDemand{RequiredQty: dec("10"), ReservedQty: dec("4")}
	if got := m.RemainingQty(); !got.Equal(dec("6")) {
		t.Fatalf("remaining = %s, want 6", got)
	}
	m.ReservedQty = dec("12")
	if got := m.RemainingQty(); !got.IsZero() {
		t.Fatalf("over-reserved remaining = %s, want 0", got)
	}
}
