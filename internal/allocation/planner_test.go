package allocation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reservecore/pkg/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lot(id string, available string, created time.Time, expiry *time.Time) domain.Lot {
	l := domain.Lot{
		LotNumber:    id,
		AvailableQty: dec(available),
		ExpiryDate:   expiry,
		Status:       domain.LotStatusAvailable,
	}
	l.ID = id
	l.CreatedAt = created
	return l
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func dayPtr(t *testing.T, s string) *time.Time {
	ts := day(t, s)
	return &ts
}

func TestBuildFIFOOrdersByReceipt(t *testing.T) {
	lots := []domain.Lot{
		lot("B", "60", day(t, "2025-01-05"), nil),
		lot("A", "50", day(t, "2025-01-01"), nil),
		lot("C", "40", day(t, "2025-01-03"), nil),
	}
	plan := Build(PolicyFIFO, dec("70"), lots, false)
	if len(plan.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(plan.Lines))
	}
	if plan.Lines[0].LotID != "A" || !plan.Lines[0].Quantity.Equal(dec("50")) {
		t.Fatalf("first line = %+v, want lot A qty 50", plan.Lines[0])
	}
	if plan.Lines[1].LotID != "C" || !plan.Lines[1].Quantity.Equal(dec("20")) {
		t.Fatalf("second line = %+v, want lot C qty 20", plan.Lines[1])
	}
	if !plan.Covered() {
		t.Fatalf("expected full coverage, shortage %s", plan.Shortage)
	}
}

func TestBuildFEFOOrdersByExpiry(t *testing.T) {
	lots := []domain.Lot{
		lot("X", "70", day(t, "2025-01-01"), dayPtr(t, "2025-06-15")),
		lot("Y", "60", day(t, "2025-01-02"), dayPtr(t, "2025-02-15")),
		lot("Z", "80", day(t, "2025-01-03"), dayPtr(t, "2025-09-01")),
	}
	plan := Build(PolicyFEFO, dec("90"), lots, false)
	if len(plan.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(plan.Lines))
	}
	if plan.Lines[0].LotID != "Y" || !plan.Lines[0].Quantity.Equal(dec("60")) {
		t.Fatalf("first line = %+v, want lot Y qty 60", plan.Lines[0])
	}
	if plan.Lines[1].LotID != "X" || !plan.Lines[1].Quantity.Equal(dec("30")) {
		t.Fatalf("second line = %+v, want lot X qty 30", plan.Lines[1])
	}
}

func TestBuildFEFONilExpirySortsLast(t *testing.T) {
	lots := []domain.Lot{
		lot("open", "100", day(t, "2024-12-01"), nil),
		lot("dated", "10", day(t, "2025-01-01"), dayPtr(t, "2025-03-01")),
	}
	plan := Build(PolicyFEFO, dec("15"), lots, false)
	if plan.Lines[0].LotID != "dated" {
		t.Fatalf("expected dated lot first, got %s", plan.Lines[0].LotID)
	}
	if plan.Lines[1].LotID != "open" || !plan.Lines[1].Quantity.Equal(dec("5")) {
		t.Fatalf("second line = %+v, want open qty 5", plan.Lines[1])
	}
}

func TestBuildFEFOTieBreaksOnReceipt(t *testing.T) {
	expiry := dayPtr(t, "2025-05-01")
	lots := []domain.Lot{
		lot("newer", "10", day(t, "2025-01-02"), expiry),
		lot("older", "10", day(t, "2025-01-01"), expiry),
	}
	plan := Build(PolicyFEFO, dec("10"), lots, false)
	if plan.Lines[0].LotID != "older" {
		t.Fatalf("expected older lot on equal expiry, got %s", plan.Lines[0].LotID)
	}
}

func TestBuildReportsShortage(t *testing.T) {
	lots := []domain.Lot{
		lot("A", "30", day(t, "2025-01-01"), nil),
	}
	plan := Build(PolicyFIFO, dec("100"), lots, false)
	if !plan.Shortage.Equal(dec("70")) {
		t.Fatalf("shortage = %s, want 70", plan.Shortage)
	}
	if plan.Covered() {
		t.Fatalf("plan must not report coverage with a shortage")
	}
}

func TestBuildSkipsExhaustedLots(t *testing.T) {
	lots := []domain.Lot{
		lot("empty", "0", day(t, "2025-01-01"), nil),
		lot("full", "20", day(t, "2025-01-02"), nil),
	}
	plan := Build(PolicyFIFO, dec("10"), lots, false)
	if len(plan.Lines) != 1 || plan.Lines[0].LotID != "full" {
		t.Fatalf("expected single draw from full lot, got %+v", plan.Lines)
	}
}

func TestBuildWholeLotTakesFullQuantity(t *testing.T) {
	lots := []domain.Lot{
		lot("A", "40", day(t, "2025-01-01"), nil),
		lot("B", "40", day(t, "2025-01-02"), nil),
	}
	plan := Build(PolicyFIFO, dec("50"), lots, true)
	if len(plan.Lines) != 2 {
		t.Fatalf("expected 2 whole lots, got %d", len(plan.Lines))
	}
	for _, line := range plan.Lines {
		if !line.Quantity.Equal(dec("40")) {
			t.Fatalf("whole-lot draw must equal available qty, got %s", line.Quantity)
		}
	}
	if !plan.Allocated.Equal(dec("80")) || !plan.Shortage.IsZero() {
		t.Fatalf("allocated = %s shortage = %s, want 80 and 0", plan.Allocated, plan.Shortage)
	}
}

func TestBuildWholeLotSingleOvershootingCandidate(t *testing.T) {
	lots := []domain.Lot{
		lot("big", "100", day(t, "2025-01-01"), nil),
	}
	plan := Build(PolicyFIFO, dec("30"), lots, true)
	if len(plan.Lines) != 1 || !plan.Lines[0].Quantity.Equal(dec("100")) {
		t.Fatalf("expected full draw of 100, got %+v", plan.Lines)
	}
	if !plan.Covered() {
		t.Fatalf("overshooting whole lot still covers the requirement")
	}
}

func TestBuildZeroRequirement(t *testing.T) {
	plan := Build(PolicyFIFO, decimal.Zero, []domain.Lot{lot("A", "10", day(t, "2025-01-01"), nil)}, false)
	if len(plan.Lines) != 0 || !plan.Shortage.IsZero() {
		t.Fatalf("zero requirement must plan nothing, got %+v", plan)
	}
}

func TestParsePolicy(t *testing.T) {
	if _, err := ParsePolicy("fefo"); err != nil {
		t.Fatalf("fefo should parse: %v", err)
	}
	if _, err := ParsePolicy("lifo"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
