package core

// parser.go turns an uploaded workbook into typed row collections.
//
// Parsing is all-or-nothing at the file level: an unreadable archive, a
// missing required sheet or an ambiguous header row fails with *ParseError
// and nothing partially parsed is returned. Row-level problems are not the
// parser's concern; rows are returned as cleaned strings for validation.

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/xuri/excelize/v2"
)

// headerSearchRows is how far down a sheet the header row may start.
// Exported workbooks may carry instruction rows above it.
const headerSearchRows = 20

var xlsxMagic = []byte("PK\x03\x04")

// ParseError is a fatal file-level or structural failure.
type ParseError struct {
	Code    IssueCode
	Sheet   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

// Issue renders the error as a validation issue.
func (e *ParseError) Issue() Issue {
	return newIssue(e.Code, e.Sheet, 0, "", e.Message)
}

// Sheet is the parsed content of one logical sheet.
type Sheet[R any] struct {
	Type           SheetType      `json:"type"`
	Present        bool           `json:"present"`
	Name           string         `json:"name,omitempty"`
	HeaderRow      int            `json:"headerRow,omitempty"`
	Columns        map[string]int `json:"columns,omitempty"`
	MissingHeaders []string       `json:"missingHeaders,omitempty"`
	Rows           []R            `json:"rows"`
}

// Has reports whether the sheet carries a column for property.
func (s Sheet[R]) Has(property string) bool {
	_, ok := s.Columns[property]
	return ok
}

// Usable reports whether row-level work can run on the sheet.
func (s Sheet[R]) Usable() bool {
	return s.Present && len(s.MissingHeaders) == 0
}

// PartRow is one data row of the Parts sheet.
type PartRow struct {
	Row            int    `json:"row"`
	ID             string `json:"id,omitempty" col:"_id" validate:"omitempty,uuid"`
	SKU            string `json:"acrSku" col:"acr_sku" validate:"required,max=50"`
	Status         string `json:"status,omitempty" col:"status" validate:"part_status"`
	PartType       string `json:"partType,omitempty" col:"part_type" validate:"max=100"`
	PositionType   string `json:"positionType,omitempty" col:"position_type" validate:"max=100"`
	ABSType        string `json:"absType,omitempty" col:"abs_type" validate:"max=100"`
	BoltPattern    string `json:"boltPattern,omitempty" col:"bolt_pattern" validate:"max=100"`
	DriveType      string `json:"driveType,omitempty" col:"drive_type" validate:"max=100"`
	Specifications string `json:"specifications,omitempty" col:"specifications" validate:"max=2000"`

	// CrossRefs holds one cell per brand column present in the sheet.
	CrossRefs map[string]CrossRefCell `json:"crossReferences,omitempty" validate:"-"`
	Images    map[string]string       `json:"images,omitempty" validate:"-"`
}

// Key returns the row's business key.
func (r PartRow) Key() catalog.Key { return catalog.PartKey(r.SKU) }

// ApplicationRow is one data row of the Vehicle Applications sheet.
type ApplicationRow struct {
	Row       int    `json:"row"`
	ID        string `json:"id,omitempty" col:"_id" validate:"omitempty,uuid"`
	SKU       string `json:"acrSku" col:"acr_sku" validate:"required,max=50"`
	Status    string `json:"status,omitempty" col:"status" validate:"child_status"`
	Make      string `json:"make" col:"make" validate:"required,max=100"`
	Model     string `json:"model" col:"model" validate:"required,max=100"`
	StartYear string `json:"startYear,omitempty" col:"start_year" validate:"omitempty,number"`
	EndYear   string `json:"endYear,omitempty" col:"end_year" validate:"omitempty,number"`
}

// Key returns the row's business key.
func (r ApplicationRow) Key() catalog.Key { return catalog.ApplicationKey(r.SKU, r.Make, r.Model) }

// AliasRow is one data row of the Vehicle Aliases sheet.
type AliasRow struct {
	Row           int    `json:"row"`
	ID            string `json:"id,omitempty" col:"_id" validate:"omitempty,uuid"`
	Alias         string `json:"alias" col:"alias" validate:"required,max=100"`
	CanonicalName string `json:"canonicalName" col:"canonical_name" validate:"required,max=100"`
	AliasType     string `json:"aliasType" col:"alias_type" validate:"required,alias_type"`
	Status        string `json:"status,omitempty" col:"status" validate:"child_status"`
}

// Key returns the row's business key.
func (r AliasRow) Key() catalog.Key { return catalog.AliasKey(r.Alias, r.CanonicalName) }

// ParseResult holds every logical sheet of a workbook.
type ParseResult struct {
	Parts        Sheet[PartRow]        `json:"parts"`
	Applications Sheet[ApplicationRow] `json:"vehicleApplications"`
	Aliases      Sheet[AliasRow]       `json:"aliases"`
}

// RowCount returns the number of data rows across sheets.
func (p *ParseResult) RowCount() int {
	return len(p.Parts.Rows) + len(p.Applications.Rows) + len(p.Aliases.Rows)
}

// CheckFile enforces the accepted extension and size before any parsing.
func CheckFile(name string, size, maxSize int64) error {
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".xlsx" {
		return &ParseError{
			Code:    CodeFileType,
			Message: fmt.Sprintf("unsupported file type %q: only .xlsx workbooks are accepted", ext),
		}
	}
	if size == 0 {
		return &ParseError{Code: CodeFileEmpty, Message: "empty file"}
	}
	if maxSize > 0 && size > maxSize {
		return &ParseError{
			Code:    CodeFileSize,
			Message: fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit", size, maxSize),
		}
	}
	return nil
}

// ParseWorkbook reads the Parts, Vehicle Applications and Vehicle Aliases
// sheets from an xlsx buffer.
func ParseWorkbook(data []byte) (*ParseResult, error) {
	if len(data) == 0 {
		return nil, &ParseError{Code: CodeFileEmpty, Message: "empty file"}
	}
	if !bytes.HasPrefix(data, xlsxMagic) {
		return nil, &ParseError{Code: CodeFileCorrupt, Message: "corrupt workbook: not an xlsx archive"}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Code: CodeFileCorrupt, Message: "corrupt workbook", Err: err}
	}
	defer f.Close()

	wb := workbook{file: f, names: f.GetSheetList()}
	result := &ParseResult{}

	if result.Parts, err = parseSheet(wb, mustSheet(SheetParts), buildPartRow); err != nil {
		return nil, err
	}
	if result.Applications, err = parseSheet(wb, mustSheet(SheetApplications), buildApplicationRow); err != nil {
		return nil, err
	}
	if result.Aliases, err = parseSheet(wb, mustSheet(SheetAliases), buildAliasRow); err != nil {
		return nil, err
	}
	return result, nil
}

type workbook struct {
	file  *excelize.File
	names []string
}

func (wb workbook) find(def SheetDefinition) (string, bool) {
	for _, name := range wb.names {
		if def.MatchesName(name) {
			return name, true
		}
	}
	return "", false
}

// rowReader returns the cleaned cell for a property, or "" if the column is absent.
type rowReader func(property string) string

func parseSheet[R any](wb workbook, def SheetDefinition, build func(int, rowReader, map[string]int) R) (Sheet[R], error) {
	sheet := Sheet[R]{Type: def.Type}

	name, ok := wb.find(def)
	if !ok {
		if def.Required {
			return sheet, &ParseError{
				Code:    CodeMissingSheet,
				Sheet:   def.Label,
				Message: fmt.Sprintf("missing required sheet %q", def.Label),
			}
		}
		return sheet, nil
	}
	sheet.Present = true
	sheet.Name = name

	rows, err := wb.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet, &ParseError{Code: CodeFileCorrupt, Sheet: def.Label, Message: "corrupt workbook", Err: err}
	}
	for i, row := range rows {
		for _, cell := range row {
			if !utf8.ValidString(cell) {
				return sheet, &ParseError{
					Code:    CodeFileEncoding,
					Sheet:   def.Label,
					Message: fmt.Sprintf("encoding error: sheet %q row %d is not valid UTF-8", def.Label, i+1),
				}
			}
		}
	}

	headerIdx := findHeaderRow(rows, def)
	if headerIdx < 0 {
		for _, col := range def.Columns {
			if col.Required {
				sheet.MissingHeaders = append(sheet.MissingHeaders, col.Property)
			}
		}
		return sheet, nil
	}
	sheet.HeaderRow = headerIdx + 1

	cols, err := mapHeaders(rows[headerIdx], def)
	if err != nil {
		return sheet, err
	}
	sheet.Columns = cols
	for _, col := range def.Columns {
		if _, ok := cols[col.Property]; col.Required && !ok {
			sheet.MissingHeaders = append(sheet.MissingHeaders, col.Property)
		}
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		read := func(property string) string {
			idx, ok := cols[property]
			if !ok || idx >= len(row) {
				return ""
			}
			return CleanCell(row[idx])
		}
		sheet.Rows = append(sheet.Rows, build(i+1, read, cols))
	}
	return sheet, nil
}

// findHeaderRow returns the index of the first row that resolves the sheet's
// key column, or -1.
func findHeaderRow(rows [][]string, def SheetDefinition) int {
	limit := min(len(rows), headerSearchRows)
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if p, ok := def.Resolve(cell); ok && p == def.KeyColumn {
				return i
			}
		}
	}
	return -1
}

// mapHeaders maps canonical properties to column positions. Two columns
// resolving to the same property make the mapping ambiguous.
func mapHeaders(header []string, def SheetDefinition) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for j, cell := range header {
		p, ok := def.Resolve(cell)
		if !ok {
			continue
		}
		if prev, dup := cols[p]; dup {
			msg := fmt.Sprintf("duplicate header in sheet %q: columns %s and %s both map to %q",
				def.Label, columnName(prev), columnName(j), p)
			return nil, &ParseError{Code: CodeDuplicateHeader, Sheet: def.Label, Message: msg}
		}
		cols[p] = j
	}
	return cols, nil
}

func columnName(idx int) string {
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return fmt.Sprintf("#%d", idx+1)
	}
	return name
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if CleanCell(cell) != "" {
			return false
		}
	}
	return true
}

func buildPartRow(rowNum int, read rowReader, cols map[string]int) PartRow {
	r := PartRow{
		Row:            rowNum,
		ID:             read(PropID),
		SKU:            read(PropSKU),
		Status:         read(PropStatus),
		PartType:       read(PropPartType),
		PositionType:   read(PropPositionType),
		ABSType:        read(PropABSType),
		BoltPattern:    read(PropBoltPattern),
		DriveType:      read(PropDriveType),
		Specifications: read(PropSpecifications),
	}
	for _, brand := range catalog.Brands {
		prop := BrandProperty(brand)
		if _, ok := cols[prop]; !ok {
			continue
		}
		if r.CrossRefs == nil {
			r.CrossRefs = make(map[string]CrossRefCell)
		}
		r.CrossRefs[brand] = SplitCrossReferences(read(prop))
	}
	for _, prop := range imageProperties {
		if v := read(prop); v != "" {
			if r.Images == nil {
				r.Images = make(map[string]string)
			}
			r.Images[prop] = v
		}
	}
	return r
}

func buildApplicationRow(rowNum int, read rowReader, _ map[string]int) ApplicationRow {
	return ApplicationRow{
		Row:       rowNum,
		ID:        read(PropID),
		SKU:       read(PropSKU),
		Status:    read(PropStatus),
		Make:      read(PropMake),
		Model:     read(PropModel),
		StartYear: normalizeIntCell(read(PropStartYear)),
		EndYear:   normalizeIntCell(read(PropEndYear)),
	}
}

func buildAliasRow(rowNum int, read rowReader, _ map[string]int) AliasRow {
	return AliasRow{
		Row:           rowNum,
		ID:            read(PropID),
		Alias:         read(PropAlias),
		CanonicalName: read(PropCanonicalName),
		AliasType:     read(PropAliasType),
		Status:        read(PropStatus),
	}
}
