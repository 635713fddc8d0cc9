package domain

import "testing"

func TestValidCPF(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"52998224725", true},
		{NormalizeDigits("529.982.247-25"), true},
		{"52998224724", false},
		{"11111111111", false},
		{"1234567890", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidCPF(tc.in); got != tc.want {
			t.Fatalf("ValidCPF(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidCNPJ(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"11222333000181", true},
		{NormalizeDigits("11.222.333/0001-81"), true},
		{"11222333000182", false},
		{"00000000000000", false},
		{"1122233300018", false},
	}
	for _, tc := range cases {
		if got := ValidCNPJ(tc.in); got != tc.want {
			t.Fatalf("ValidCNPJ(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, r := range AllRoles() {
		got, ok := ParseRole(" " + string(r) + " ")
		if !ok || got != r {
			t.Fatalf("ParseRole(%q)=%q,%v", r, got, ok)
		}
	}
	if got, ok := ParseRole("company"); !ok || got != RoleCompany {
		t.Fatalf("ParseRole(company)=%q,%v", got, ok)
	}
	if _, ok := ParseRole("DRIVER"); ok {
		t.Fatalf("expected DRIVER to be rejected")
	}
	if Role("company").Valid() {
		t.Fatalf("lowercase role must not be Valid")
	}
}

func TestRoles_WithKeepsOrderAndDedupes(t *testing.T) {
	t.Parallel()

	rs := Roles{RoleAdmin}.With(RolePassenger).With(RoleAdmin).With(RoleCompany)
	got := rs.Strings()
	want := []string{"PASSENGER", "COMPANY", "ADMIN"}
	if len(got) != len(want) {
		t.Fatalf("roles=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("roles=%v want %v", got, want)
		}
	}
	if !rs.Has(RoleCompany) || (Roles{}).Has(RoleAdmin) {
		t.Fatalf("Has mismatch: %v", rs)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := NormalizeHumanName("  Ana   Maria  "); got != "Ana Maria" {
		t.Fatalf("NormalizeHumanName=%q", got)
	}
	if got := NormalizeEmail(" Ana@Example.COM "); got != "ana@example.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
	if got := NormalizeDigits("a1.2-3/4"); got != "1234" {
		t.Fatalf("NormalizeDigits=%q", got)
	}
}
