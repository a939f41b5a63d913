package catalog

import (
	"testing"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
		zero bool
	}{
		{"part", PartKey(" ACR-100 "), "ACR-100", false},
		{"application", ApplicationKey("ACR-100", "Nissan", " Tsuru"), "ACR-100 / Nissan / Tsuru", false},
		{"alias", AliasKey("Chevy", "Chevrolet"), "Chevy / Chevrolet", false},
		{"missing part of key", ApplicationKey("ACR-100", "", "Tsuru"), "", true},
		{"blank", PartKey("  "), "", true},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
		if got := tt.key.IsZero(); got != tt.zero {
			t.Errorf("%s: IsZero() = %v, want %v", tt.name, got, tt.zero)
		}
	}
}

func TestKeysAreCaseSensitive(t *testing.T) {
	if PartKey("acr-100") == PartKey("ACR-100") {
		t.Error("PartKey folded case")
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"", StatusActive, true},
		{"Activo", StatusActive, true},
		{" INACTIVO ", StatusInactive, true},
		{"Eliminar", StatusDelete, true},
		{"delete", StatusDelete, true},
		{"borrar", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeSKUs(t *testing.T) {
	got := NormalizeSKUs([]string{" B ", "A", "", "B"})
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("NormalizeSKUs = %q, want [A B]", got)
	}
	if !EqualSKUs(got, NormalizeSKUs([]string{"B", "A"})) {
		t.Error("EqualSKUs of normalized lists")
	}
}

func TestCrossReferencesSet(t *testing.T) {
	c := CrossReferences{"NATIONAL": {"N-1"}}
	c.Set("NATIONAL", nil)
	if _, ok := c["NATIONAL"]; ok {
		t.Error("Set with an empty list must remove the brand")
	}
	c.Set("TMK", []string{"T-2", "T-1"})
	if c.Count() != 2 || c["TMK"][0] != "T-1" {
		t.Errorf("Set = %v", c)
	}
}

func TestFingerprint(t *testing.T) {
	state := func() *State {
		return &State{
			Parts: []Part{
				{ID: "p2", SKU: "B", Status: StatusActive},
				{ID: "p1", SKU: "A", Status: StatusActive, CrossReferences: CrossReferences{"NATIONAL": {"N-1"}}},
			},
			Applications: []VehicleApplication{
				{ID: "a1", PartID: "p1", SKU: "A", Make: "Nissan", Model: "Tsuru", StartYear: IntPtr(1992)},
			},
		}
	}

	a, b := state(), state()
	b.Parts[0], b.Parts[1] = b.Parts[1], b.Parts[0]
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("state fingerprint depends on row order")
	}

	b.Parts[0].ID = "other"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("state fingerprint ignores ids")
	}

	p := a.Parts[1]
	q := p.Clone()
	q.ID = "different"
	if p.Fingerprint() != q.Fingerprint() {
		t.Error("record fingerprint includes the id")
	}
	q.CrossReferences["NATIONAL"] = []string{"N-2"}
	if p.Fingerprint() == q.Fingerprint() {
		t.Error("record fingerprint ignores cross references")
	}

	app := a.Applications[0]
	moved := app.Clone()
	moved.PartID = "p9"
	if app.Fingerprint() != moved.Fingerprint() {
		t.Error("application fingerprint includes the part id")
	}
	moved.EndYear = IntPtr(2017)
	if app.Fingerprint() == moved.Fingerprint() {
		t.Error("application fingerprint ignores years")
	}
}
