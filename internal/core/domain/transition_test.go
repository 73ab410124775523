package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseQR_Valid(t *testing.T) {
	key, err := ParseQR("OG971390|202630010002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Reference != "OG971390" || key.Serial != "202630010002" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestParseQR_TrimsSegments(t *testing.T) {
	key, err := ParseQR("  REF1 | S1  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Reference != "REF1" || key.Serial != "S1" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestParseQR_Invalid(t *testing.T) {
	for _, in := range []string{"no-pipe", "a|b|c", "|S1", "REF|", " | ", ""} {
		_, err := ParseQR(in)
		if err == nil {
			t.Fatalf("expected error for %q", in)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %q, got %T", in, err)
		}
		if ve.Input != in {
			t.Fatalf("expected input %q echoed, got %q", in, ve.Input)
		}
	}
}

func TestAdvance_FullLifecycle(t *testing.T) {
	key := Key{Reference: "REF1", Serial: "S1"}
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	rec, action := Advance(nil, key, base, "planta@example.com", "acme")
	if action != ActionStored || rec.Status != StatusInStock {
		t.Fatalf("first scan: got %s/%s", action, rec.Status)
	}
	if rec.StockedBy != "planta@example.com" || rec.Client != "acme" {
		t.Fatalf("first scan must capture actor and client: %+v", rec)
	}
	if rec.StockedAt == nil || !rec.StockedAt.Equal(base) {
		t.Fatalf("stocked timestamp not set")
	}

	steps := []struct {
		action ScanAction
		status RecordStatus
	}{
		{ActionDispatched, StatusDispatched},
		{ActionInstalled, StatusInstalled},
		{ActionUninstalled, StatusUninstalled},
	}
	for i, step := range steps {
		now := base.Add(time.Duration(i+1) * time.Hour)
		prev := rec
		rec, action = Advance(&prev, key, now, "tecnico@example.com", "other")
		if action != step.action || rec.Status != step.status {
			t.Fatalf("step %d: expected %s/%s, got %s/%s", i, step.action, step.status, action, rec.Status)
		}
		if rec.Client != "acme" {
			t.Fatalf("step %d: client must not change, got %q", i, rec.Client)
		}
		if prev.Status == rec.Status {
			t.Fatalf("step %d: existing record was mutated", i)
		}
	}

	if rec.DispatchedAt == nil || rec.InstalledAt == nil || rec.UninstalledAt == nil {
		t.Fatalf("all transition timestamps must be set: %+v", rec)
	}
	if rec.InstalledBy != "tecnico@example.com" || rec.UninstalledBy != "tecnico@example.com" {
		t.Fatalf("install/uninstall actors not captured: %+v", rec)
	}
}

func TestAdvance_DispatchCapturesNoActor(t *testing.T) {
	existing := &InventoryRecord{Reference: "R", Serial: "S", Status: StatusInStock, StockedBy: "a"}
	rec, _ := Advance(existing, existing.Key(), time.Now(), "b", "")
	if rec.StockedBy != "a" || rec.InstalledBy != "" || rec.UninstalledBy != "" {
		t.Fatalf("dispatch must not record an actor: %+v", rec)
	}
}

func TestAdvance_TerminalIsIdempotent(t *testing.T) {
	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &InventoryRecord{Reference: "R", Serial: "S", Status: StatusUninstalled, UninstalledAt: &done}

	for i := 0; i < 3; i++ {
		rec, action := Advance(existing, existing.Key(), time.Now(), "x", "")
		if action != ActionAlreadyCompleted {
			t.Fatalf("expected already_completed, got %s", action)
		}
		if rec.Status != StatusUninstalled || !rec.UninstalledAt.Equal(done) {
			t.Fatalf("terminal record changed: %+v", rec)
		}
	}
}

func TestRecordStatus_CanTransitionTo(t *testing.T) {
	if !StatusInStock.CanTransitionTo(StatusDispatched) {
		t.Error("IN_STOCK -> DISPATCHED must be allowed")
	}
	if StatusInStock.CanTransitionTo(StatusInstalled) {
		t.Error("IN_STOCK -> INSTALLED must be rejected")
	}
	if StatusDispatched.CanTransitionTo(StatusInStock) {
		t.Error("backwards transitions must be rejected")
	}
	if !StatusUninstalled.Terminal() || StatusInstalled.Terminal() {
		t.Error("only UNINSTALLED is terminal")
	}
}

func TestInventoryRecord_Touched(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, loc)
	lateYesterdayUTC := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC) // 00:30 on the 5th in loc
	older := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	rec := &InventoryRecord{StockedAt: &older}
	if rec.Touched(now, loc) {
		t.Fatal("record from a previous day must not count as today")
	}
	rec.DispatchedAt = &lateYesterdayUTC
	if !rec.Touched(now, loc) {
		t.Fatal("transition on the same local day must count as today")
	}
}
