// Package testutil builds catalog workbooks and fixtures for tests.
package testutil

import (
	"testing"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet: a name and its rows, header row first.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook renders sheets as an .xlsx buffer. It fails the test on any
// excelize error.
func Workbook(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("create sheet %s: %v", s.Name, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			row := row
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				t.Fatalf("write %s row %d: %v", s.Name, r+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// Parts returns a Parts sheet with the given header and rows.
func Parts(header []any, rows ...[]any) Sheet {
	return Sheet{Name: "Parts", Rows: append([][]any{header}, rows...)}
}

// Applications returns a Vehicle Applications sheet.
func Applications(header []any, rows ...[]any) Sheet {
	return Sheet{Name: "Vehicle Applications", Rows: append([][]any{header}, rows...)}
}

// Aliases returns a Vehicle Aliases sheet.
func Aliases(header []any, rows ...[]any) Sheet {
	return Sheet{Name: "Vehicle Aliases", Rows: append([][]any{header}, rows...)}
}

// Common headers.
var (
	PartsHeader        = []any{"ACR SKU", "Status", "Part Type", "Position", "National SKUs"}
	ApplicationsHeader = []any{"ACR SKU", "Status", "Make", "Model", "Start Year", "End Year"}
	AliasesHeader      = []any{"Alias", "Canonical Name", "Alias Type", "Status"}
)

// Catalog returns a small persisted catalog: two parts with applications,
// cross references and one alias. IDs are left empty for the store to fill.
//
//	ACR-100  Rotor   Front  National: NAT-100, NAT-200, NAT-300
//	         applications: Nissan Tsuru 1992-2017, Nissan Sentra 2000-2006
//	ACR-200  Caliper Rear
//	         application: Chevrolet Aveo 2008-2018
//	alias    Chevy -> Chevrolet (make)
func Catalog() *catalog.State {
	return &catalog.State{
		Parts: []catalog.Part{
			{
				SKU:          "ACR-100",
				Status:       catalog.StatusActive,
				PartType:     "Rotor",
				PositionType: "Front",
				CrossReferences: catalog.CrossReferences{
					"NATIONAL": {"NAT-100", "NAT-200", "NAT-300"},
				},
			},
			{
				SKU:          "ACR-200",
				Status:       catalog.StatusActive,
				PartType:     "Caliper",
				PositionType: "Rear",
			},
		},
		Applications: []catalog.VehicleApplication{
			{SKU: "ACR-100", Make: "Nissan", Model: "Tsuru", StartYear: catalog.IntPtr(1992), EndYear: catalog.IntPtr(2017)},
			{SKU: "ACR-100", Make: "Nissan", Model: "Sentra", StartYear: catalog.IntPtr(2000), EndYear: catalog.IntPtr(2006)},
			{SKU: "ACR-200", Make: "Chevrolet", Model: "Aveo", StartYear: catalog.IntPtr(2008), EndYear: catalog.IntPtr(2018)},
		},
		Aliases: []catalog.VehicleAlias{
			{Alias: "Chevy", CanonicalName: "Chevrolet", AliasType: catalog.AliasMake},
		},
	}
}

// CatalogParts returns the Parts rows matching Catalog, for PartsHeader.
func CatalogParts() [][]any {
	return [][]any{
		{"ACR-100", "Activo", "Rotor", "Front", "NAT-100; NAT-200; NAT-300"},
		{"ACR-200", "Activo", "Caliper", "Rear", ""},
	}
}

// CatalogApplications returns the application rows matching Catalog, for
// ApplicationsHeader.
func CatalogApplications() [][]any {
	return [][]any{
		{"ACR-100", "Activo", "Nissan", "Tsuru", 1992, 2017},
		{"ACR-100", "Activo", "Nissan", "Sentra", 2000, 2006},
		{"ACR-200", "Activo", "Chevrolet", "Aveo", 2008, 2018},
	}
}
