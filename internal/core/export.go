package core

// export.go writes the catalog as a workbook that ParseWorkbook reads back.
// Re-importing an unmodified export yields an empty diff.

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/xuri/excelize/v2"
)

// ExportWorkbook renders state as an .xlsx workbook with one sheet per
// registered sheet type, in registry order.
func ExportWorkbook(state *catalog.State) ([]byte, error) {
	st := state.Clone()
	st.Sort()

	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, def := range All() {
		name := def.Label
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		cols := exportedColumns(def)
		header := make([]any, len(cols))
		for i, c := range cols {
			header[i] = c.Headers[0]
		}

		rows := exportRows(def.Type, st, cols)
		if err := writeRow(f, name, 1, header); err != nil {
			return nil, err
		}
		for i, row := range rows {
			if err := writeRow(f, name, i+2, row); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func exportedColumns(def SheetDefinition) []ColumnSpec {
	var cols []ColumnSpec
	for _, c := range def.Columns {
		if c.Exported {
			cols = append(cols, c)
		}
	}
	return cols
}

func exportRows(t SheetType, st *catalog.State, cols []ColumnSpec) [][]any {
	var out [][]any
	switch t {
	case SheetParts:
		for _, p := range st.Parts {
			out = append(out, rowValues(cols, func(c ColumnSpec) any { return partValue(p, c) }))
		}
	case SheetApplications:
		for _, a := range st.Applications {
			out = append(out, rowValues(cols, func(c ColumnSpec) any { return applicationValue(a, c) }))
		}
	case SheetAliases:
		for _, a := range st.Aliases {
			out = append(out, rowValues(cols, func(c ColumnSpec) any { return aliasValue(a, c) }))
		}
	}
	return out
}

func rowValues(cols []ColumnSpec, value func(ColumnSpec) any) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = value(c)
	}
	return row
}

// joinCrossReferences renders a brand list so SplitCrossReferences reads it
// back unchanged. A lone SKU with inner whitespace gets a trailing ';' to keep
// it off the legacy whitespace split.
func joinCrossReferences(skus []string) string {
	out := strings.Join(skus, "; ")
	if len(skus) == 1 && strings.ContainsFunc(out, unicode.IsSpace) {
		out += ";"
	}
	return out
}

func partValue(p catalog.Part, c ColumnSpec) any {
	if c.Brand != "" {
		return joinCrossReferences(p.CrossReferences[c.Brand])
	}
	switch c.Property {
	case PropID:
		return p.ID
	case PropSKU:
		return p.SKU
	case PropStatus:
		return p.Status.Label()
	case PropPartType:
		return p.PartType
	case PropPositionType:
		return p.PositionType
	case PropABSType:
		return p.ABSType
	case PropBoltPattern:
		return p.BoltPattern
	case PropDriveType:
		return p.DriveType
	case PropSpecifications:
		return p.Specifications
	}
	return ""
}

func applicationValue(a catalog.VehicleApplication, c ColumnSpec) any {
	switch c.Property {
	case PropID:
		return a.ID
	case PropSKU:
		return a.SKU
	case PropStatus:
		return catalog.StatusActive.Label()
	case PropMake:
		return a.Make
	case PropModel:
		return a.Model
	case PropStartYear:
		return yearValue(a.StartYear)
	case PropEndYear:
		return yearValue(a.EndYear)
	}
	return ""
}

func aliasValue(a catalog.VehicleAlias, c ColumnSpec) any {
	switch c.Property {
	case PropID:
		return a.ID
	case PropAlias:
		return a.Alias
	case PropCanonicalName:
		return a.CanonicalName
	case PropAliasType:
		return string(a.AliasType)
	case PropStatus:
		return catalog.StatusActive.Label()
	}
	return ""
}

// yearValue writes years as numbers so spreadsheet users can sort them.
func yearValue(y *int) any {
	if y == nil {
		return ""
	}
	return *y
}

// Export renders the persisted catalog as a workbook.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	state, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return ExportWorkbook(state)
}
