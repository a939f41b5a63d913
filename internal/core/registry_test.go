package core

import (
	"testing"
)

func TestSheetDefinitionResolve(t *testing.T) {
	parts := mustSheet(SheetParts)

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"ACR SKU", PropSKU, true},
		{"  acr   sku ", PropSKU, true},
		{"SKU ACR", PropSKU, true},
		{"acr_sku", PropSKU, true},
		{"National SKUs", "national_skus", true},
		{"National", "national_skus", true},
		{"OEM 2", "oem_2_skus", true},
		{"oem_2_skus", "oem_2_skus", true},
		{"Posición", PropPositionType, true},
		{"_id", PropID, true},
		{"ID Interno", PropID, true},
		{"Image URL Front", "image_url_front", true},
		{"Color", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parts.Resolve(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Resolve(%q) = %q, %v, want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSheetDefinitionMatchesName(t *testing.T) {
	tests := []struct {
		sheet SheetType
		name  string
		want  bool
	}{
		{SheetParts, "Parts", true},
		{SheetParts, "partes", true},
		{SheetParts, "Catálogo", true},
		{SheetApplications, "Aplicaciones Vehiculares", true},
		{SheetApplications, "vehicle_applications", true},
		{SheetAliases, "Alias", true},
		{SheetAliases, "Parts", false},
	}
	for _, tt := range tests {
		if got := mustSheet(tt.sheet).MatchesName(tt.name); got != tt.want {
			t.Errorf("%s.MatchesName(%q) = %v, want %v", tt.sheet, tt.name, got, tt.want)
		}
	}
}

func TestRegistryAllOrder(t *testing.T) {
	all := All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d sheets, want 3", len(all))
	}
	want := []SheetType{SheetParts, SheetApplications, SheetAliases}
	for i, def := range all {
		if def.Type != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, def.Type, want[i])
		}
	}
}

func TestRegistryPanics(t *testing.T) {
	def := func() SheetDefinition {
		return SheetDefinition{
			Type:      "widgets",
			KeyColumn: "code",
			Columns: []ColumnSpec{
				{Property: "code", Headers: []string{"Code"}},
				{Property: "name", Headers: []string{"Name"}},
			},
		}
	}

	tests := []struct {
		name  string
		setup func(r *Registry)
	}{
		{"duplicate registration", func(r *Registry) {
			r.Register(def())
			r.Register(def())
		}},
		{"duplicate property", func(r *Registry) {
			d := def()
			d.Columns = append(d.Columns, ColumnSpec{Property: "code"})
			r.Register(d)
		}},
		{"ambiguous header", func(r *Registry) {
			d := def()
			d.Columns[1].Headers = []string{"code"}
			r.Register(d)
		}},
		{"unknown key column", func(r *Registry) {
			d := def()
			d.KeyColumn = "sku"
			r.Register(d)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.setup(NewRegistry())
		})
	}
}
