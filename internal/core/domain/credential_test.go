package domain

import "testing"

func TestParseRole_Aliases(t *testing.T) {
	cases := map[string]Role{
		"worker":         RoleWorker,
		"Mecanico":       RoleWorker,
		" ADMINISTRADOR": RoleAdmin,
		"admin":          RoleAdmin,
		"SUPER":          RoleSuperadmin,
		"superadmin":     RoleSuperadmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseRole("guest"); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRole_AcceptsLogin(t *testing.T) {
	if !RoleSuperadmin.AcceptsLogin(RoleAdmin) {
		t.Error("superadmin must be accepted through the admin login")
	}
	if RoleSuperadmin.AcceptsLogin(RoleWorker) {
		t.Error("superadmin must not be accepted through the worker login")
	}
	if RoleAdmin.AcceptsLogin(RoleSuperadmin) {
		t.Error("admin must not be accepted through the superadmin login")
	}
	if !RoleWorker.AcceptsLogin(RoleWorker) {
		t.Error("matching role must be accepted")
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Ana.Perez@Example.COM "); got != "ana.perez@example.com" {
		t.Fatalf("unexpected normalized username %q", got)
	}
}

func TestRole_SheetLabelRoundTrip(t *testing.T) {
	for _, r := range []Role{RoleWorker, RoleAdmin, RoleSuperadmin} {
		back, err := ParseRole(r.SheetLabel())
		if err != nil || back != r {
			t.Fatalf("sheet label %q does not parse back to %s", r.SheetLabel(), r)
		}
	}
}
