package core

// validation.go runs the rule battery over parsed rows before any diff is applied.
//
// Rules run in a fixed precedence:
//  1. Structural: missing required headers. A sheet failing here is skipped
//     for row-level rules. File-level failures never get this far; they are
//     *ParseError values from ParseWorkbook.
//  2. Field-level: required cells, UUID/number format, length ceilings,
//     workflow status and alias type (struct tags, checked by validator/v10),
//     then year bounds and year order.
//  3. Duplicate business keys within the upload.
//  4. Referential: unknown internal ids, ids that belong to another business
//     key, orphaned applications, applications kept on a deleted part.
//  5. Warnings: legacy cross-reference delimiters, removal targets that do
//     not exist, and one cascade notice per application and cross reference
//     removed with a deleted part.
//
// Errors block apply. Warnings never block validation but must be
// acknowledged before apply.

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Field length ceilings, mirrored in the struct tags of the row types.
const (
	MaxSKULength = 50
)

// Year plausibility defaults.
const (
	DefaultMinYear    = 1900
	DefaultYearsAhead = 2
)

// ValidationSummary aggregates issue counts.
type ValidationSummary struct {
	TotalErrors     int            `json:"totalErrors"`
	TotalWarnings   int            `json:"totalWarnings"`
	ErrorsBySheet   map[string]int `json:"errorsBySheet"`
	WarningsBySheet map[string]int `json:"warningsBySheet"`
}

// ValidationResult is the outcome of validating one upload.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []Issue           `json:"errors"`
	Warnings []Issue           `json:"warnings"`
	Summary  ValidationSummary `json:"summary"`
}

// HasWarnings reports whether apply needs an acknowledgment.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// ValidationFromParseError turns a fatal parse failure into a result with a
// single blocking issue.
func ValidationFromParseError(err *ParseError) *ValidationResult {
	c := newCollector()
	c.add(err.Issue())
	return c.result()
}

// ValidatorOptions configures year bounds and the part delete policy.
type ValidatorOptions struct {
	MinYear int
	MaxYear int
	Policy  PartDeletePolicy
}

// Validator runs the validation rules. It is safe for concurrent use.
type Validator struct {
	rules *validator.Validate
	opts  ValidatorOptions
}

// NewValidator creates a validator. Zero year bounds fall back to
// DefaultMinYear and the current year plus DefaultYearsAhead.
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.MinYear == 0 {
		opts.MinYear = DefaultMinYear
	}
	if opts.MaxYear == 0 {
		opts.MaxYear = time.Now().Year() + DefaultYearsAhead
	}
	if opts.Policy == "" {
		opts.Policy = PartDeleteAbsence
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("col"); name != "" {
			return name
		}
		return f.Name
	})
	mustRegister(v, "part_status", func(fl validator.FieldLevel) bool {
		_, ok := catalog.ParseStatus(fl.Field().String())
		return ok
	})
	mustRegister(v, "child_status", func(fl validator.FieldLevel) bool {
		st, ok := catalog.ParseStatus(fl.Field().String())
		return ok && st != catalog.StatusInactive
	})
	mustRegister(v, "alias_type", func(fl validator.FieldLevel) bool {
		_, ok := catalog.ParseAliasType(fl.Field().String())
		return ok
	})

	return &Validator{rules: v, opts: opts}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Options returns the effective options.
func (v *Validator) Options() ValidatorOptions { return v.opts }

// Validate checks parsed rows against each other and against persisted state.
func (v *Validator) Validate(parsed *ParseResult, state *catalog.State) *ValidationResult {
	ix := catalog.NewIndex(state)
	c := newCollector()

	checkStructure(c, parsed)

	deletes := planPartDeletes(parsed, ix, v.opts.Policy)
	deleted := deletionSet(deletes)

	if parsed.Parts.Usable() {
		v.checkParts(c, parsed.Parts, ix)
	}
	if parsed.Applications.Usable() {
		v.checkApplications(c, parsed, ix, deleted)
	}
	if parsed.Aliases.Usable() {
		v.checkAliases(c, parsed.Aliases, ix)
	}
	cascadeWarnings(c, deletes, ix)

	return c.result()
}

func checkStructure(c *collector, parsed *ParseResult) {
	check := func(t SheetType, present bool, missing []string) {
		if !present {
			return
		}
		def := mustSheet(t)
		for _, prop := range missing {
			col, _ := def.Column(prop)
			header := prop
			if len(col.Headers) > 0 {
				header = col.Headers[0]
			}
			is := newIssue(CodeMissingHeader, def.Label, 0, header,
				fmt.Sprintf("missing required column %q", header))
			is.Expected = strings.Join(append(append([]string(nil), col.Headers...), prop), ", ")
			c.add(is)
		}
	}
	check(SheetParts, parsed.Parts.Present, parsed.Parts.MissingHeaders)
	check(SheetApplications, parsed.Applications.Present, parsed.Applications.MissingHeaders)
	check(SheetAliases, parsed.Aliases.Present, parsed.Aliases.MissingHeaders)
}

func (v *Validator) checkParts(c *collector, sheet Sheet[PartRow], ix *catalog.Index) {
	label := mustSheet(SheetParts).Label
	seen := make(map[catalog.Key]int)

	for _, r := range sheet.Rows {
		c.add(v.fieldIssues(label, r.Row, r)...)

		k := r.Key()
		if !k.IsZero() {
			if first, dup := seen[k]; dup {
				c.add(duplicateIssue(label, r.Row, PropSKU, k, first))
			} else {
				seen[k] = r.Row
			}
		}

		var persisted *catalog.Part
		if r.ID != "" && uuid.Validate(r.ID) == nil {
			p, ok := ix.PartByID(r.ID)
			switch {
			case !ok:
				c.add(unknownIDIssue(label, r.Row, r.ID, "part"))
			case p.SKU != r.SKU && r.SKU != "":
				is := newIssue(CodeKeyImmutable, label, r.Row, PropSKU,
					fmt.Sprintf("acr_sku cannot change: internal id %s belongs to %s", r.ID, p.SKU))
				is.Value = r.SKU
				is.Expected = p.SKU
				c.add(is)
			}
		}
		if p, ok := ix.Part(k); ok {
			persisted = p
		}

		for _, brand := range catalog.Brands {
			cell, ok := r.CrossRefs[brand]
			if !ok {
				continue
			}
			v.checkCrossRefCell(c, label, r, brand, cell, persisted)
		}

		st, ok := catalog.ParseStatus(r.Status)
		if ok && st == catalog.StatusDelete && persisted == nil && !k.IsZero() {
			c.add(newIssue(CodeDeleteNotFound, label, r.Row, PropStatus,
				fmt.Sprintf("part %s does not exist; nothing to delete", k)))
		}
	}
}

func (v *Validator) checkCrossRefCell(c *collector, label string, r PartRow, brand string, cell CrossRefCell, persisted *catalog.Part) {
	col := BrandProperty(brand)
	if cell.LegacyDelimiter {
		is := newIssue(CodeLegacyDelimiter, label, r.Row, col,
			fmt.Sprintf("%s SKUs are separated by spaces; use ';' between SKUs", brand))
		is.Value = cell.Raw
		is.Expected = "SKU-1;SKU-2"
		c.add(is)
	}
	for _, sku := range append(append([]string(nil), cell.Add...), cell.Remove...) {
		if len([]rune(sku)) > MaxSKULength {
			is := newIssue(CodeMaxLength, label, r.Row, col,
				fmt.Sprintf("%s cross reference exceeds %d characters", brand, MaxSKULength))
			is.Value = sku
			is.Expected = fmt.Sprintf("at most %d characters", MaxSKULength)
			c.add(is)
		}
	}
	if !cell.HasRemovals() {
		return
	}
	var current []string
	if persisted != nil {
		current = persisted.CrossReferences[brand]
	}
	for _, sku := range cell.Missing(current) {
		is := newIssue(CodeDeleteNotFound, label, r.Row, col,
			fmt.Sprintf("%s cross reference %s is not on part %s; nothing to remove", brand, sku, r.SKU))
		is.Value = sku
		c.add(is)
	}
}

func (v *Validator) checkApplications(c *collector, parsed *ParseResult, ix *catalog.Index, deleted map[catalog.Key]partDeletion) {
	label := mustSheet(SheetApplications).Label
	seen := make(map[catalog.Key]int)
	uploaded := uploadedPartKeys(parsed)

	for _, r := range parsed.Applications.Rows {
		c.add(v.fieldIssues(label, r.Row, r)...)
		v.checkYears(c, label, r)

		k := r.Key()
		if !k.IsZero() {
			if first, dup := seen[k]; dup {
				c.add(duplicateIssue(label, r.Row, PropSKU, k, first))
			} else {
				seen[k] = r.Row
			}
		}

		if r.ID != "" && uuid.Validate(r.ID) == nil {
			a, ok := ix.ApplicationByID(r.ID)
			switch {
			case !ok:
				c.add(unknownIDIssue(label, r.Row, r.ID, "vehicle application"))
			case !k.IsZero() && a.Key() != k:
				is := newIssue(CodeKeyImmutable, label, r.Row, PropID,
					fmt.Sprintf("internal id %s belongs to %s; acr_sku, make and model cannot change", r.ID, a.Key()))
				is.Value = k.String()
				is.Expected = a.Key().String()
				c.add(is)
			}
		}

		st, stOK := catalog.ParseStatus(r.Status)
		pk := catalog.PartKey(r.SKU)
		if pk.IsZero() {
			continue
		}
		_, persistedParent := ix.Part(pk)
		switch {
		case !uploaded[pk] && !persistedParent:
			is := newIssue(CodeOrphan, label, r.Row, PropSKU,
				fmt.Sprintf("part %s does not exist in the upload or the catalog", r.SKU))
			is.Value = r.SKU
			c.add(is)
		case deleted[pk].Key != "" && stOK && st != catalog.StatusDelete:
			is := newIssue(CodeDeletedParent, label, r.Row, PropSKU,
				fmt.Sprintf("part %s is being deleted; its applications cannot be kept", r.SKU))
			is.Value = r.SKU
			c.add(is)
		case stOK && st == catalog.StatusDelete && deleted[pk].Key == "" && !k.IsZero():
			if _, ok := ix.Application(k); !ok {
				c.add(newIssue(CodeDeleteNotFound, label, r.Row, PropStatus,
					fmt.Sprintf("vehicle application %s does not exist; nothing to delete", k)))
			}
		}
	}
}

func (v *Validator) checkYears(c *collector, label string, r ApplicationRow) {
	start, okStart := ParseYear(r.StartYear)
	end, okEnd := ParseYear(r.EndYear)

	bounds := func(y *int, col, raw string) bool {
		if y == nil || (*y >= v.opts.MinYear && *y <= v.opts.MaxYear) {
			return true
		}
		is := newIssue(CodeYearBounds, label, r.Row, col,
			fmt.Sprintf("year %d is outside %d-%d", *y, v.opts.MinYear, v.opts.MaxYear))
		is.Value = raw
		is.Expected = fmt.Sprintf("between %d and %d", v.opts.MinYear, v.opts.MaxYear)
		c.add(is)
		return false
	}
	inStart := okStart && bounds(start, PropStartYear, r.StartYear)
	inEnd := okEnd && bounds(end, PropEndYear, r.EndYear)

	if inStart && inEnd && start != nil && end != nil && *start > *end {
		is := newIssue(CodeYearRange, label, r.Row, PropStartYear,
			fmt.Sprintf("start year %d is after end year %d", *start, *end))
		is.Value = fmt.Sprintf("%d-%d", *start, *end)
		is.Expected = "start_year <= end_year"
		c.add(is)
	}
}

func (v *Validator) checkAliases(c *collector, sheet Sheet[AliasRow], ix *catalog.Index) {
	label := mustSheet(SheetAliases).Label
	seen := make(map[catalog.Key]int)

	for _, r := range sheet.Rows {
		c.add(v.fieldIssues(label, r.Row, r)...)

		k := r.Key()
		if !k.IsZero() {
			if first, dup := seen[k]; dup {
				c.add(duplicateIssue(label, r.Row, PropAlias, k, first))
			} else {
				seen[k] = r.Row
			}
		}

		if r.ID != "" && uuid.Validate(r.ID) == nil {
			a, ok := ix.AliasByID(r.ID)
			switch {
			case !ok:
				c.add(unknownIDIssue(label, r.Row, r.ID, "vehicle alias"))
			case !k.IsZero() && a.Key() != k:
				is := newIssue(CodeKeyImmutable, label, r.Row, PropID,
					fmt.Sprintf("internal id %s belongs to %s; alias and canonical_name cannot change", r.ID, a.Key()))
				is.Value = k.String()
				is.Expected = a.Key().String()
				c.add(is)
			}
		}

		st, ok := catalog.ParseStatus(r.Status)
		if ok && st == catalog.StatusDelete && !k.IsZero() {
			if _, exists := ix.Alias(k); !exists {
				c.add(newIssue(CodeDeleteNotFound, label, r.Row, PropStatus,
					fmt.Sprintf("vehicle alias %s does not exist; nothing to delete", k)))
			}
		}
	}
}

// cascadeWarnings emits one notice per application and cross reference that
// a part delete removes, so callers can show an accurate count up front.
func cascadeWarnings(c *collector, deletes []partDeletion, ix *catalog.Index) {
	label := mustSheet(SheetParts).Label
	for _, d := range deletes {
		part, ok := ix.Part(d.Key)
		if !ok {
			continue
		}
		if d.Absent {
			c.add(newIssue(CodeRemovedByAbsence, label, 0, PropSKU,
				fmt.Sprintf("part %s is not in the upload and will be deleted", part.SKU)))
		}

		apps := append([]*catalog.VehicleApplication(nil), ix.ApplicationsForPart(d.Key)...)
		sort.Slice(apps, func(i, j int) bool { return apps[i].Key() < apps[j].Key() })
		for _, a := range apps {
			c.add(newIssue(CodeCascadeApp, label, d.Row, PropSKU,
				fmt.Sprintf("vehicle application %s %s (%s) will also be removed", a.Make, a.Model, part.SKU)))
		}

		for _, brand := range catalog.Brands {
			for _, sku := range part.CrossReferences[brand] {
				c.add(newIssue(CodeCascadeCrossRef, label, d.Row, BrandProperty(brand),
					fmt.Sprintf("%s cross reference %s (%s) will also be removed", brand, sku, part.SKU)))
			}
		}
	}
}

var tagCodes = map[string]IssueCode{
	"required":     CodeRequired,
	"uuid":         CodeInvalidUUID,
	"number":       CodeInvalidNumber,
	"max":          CodeMaxLength,
	"part_status":  CodeInvalidStatus,
	"child_status": CodeInvalidStatus,
	"alias_type":   CodeAliasType,
}

// fieldIssues runs the struct-tag rules over one row.
func (v *Validator) fieldIssues(sheet string, row int, s any) []Issue {
	err := v.rules.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		panic(fmt.Sprintf("validate %T: %v", s, err))
	}

	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fieldIssue(sheet, row, fe))
	}
	return issues
}

func fieldIssue(sheet string, row int, fe validator.FieldError) Issue {
	col := fe.Field()
	code, ok := tagCodes[fe.Tag()]
	if !ok {
		code = CodeRequired
	}

	var msg, expected string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", col)
	case "uuid":
		msg = fmt.Sprintf("%s is not a valid internal id", col)
		expected = "UUID"
	case "number":
		msg = fmt.Sprintf("%s must be a whole number", col)
		expected = "whole number"
	case "max":
		msg = fmt.Sprintf("%s exceeds %s characters", col, fe.Param())
		expected = fmt.Sprintf("at most %s characters", fe.Param())
	case "part_status":
		msg = fmt.Sprintf("%s is not a valid status", col)
		expected = "Activo, Inactivo or Eliminar"
	case "child_status":
		msg = fmt.Sprintf("%s is not a valid status", col)
		expected = "Activo or Eliminar"
	case "alias_type":
		msg = fmt.Sprintf("%s must be make or model", col)
		expected = "make or model"
	default:
		msg = fmt.Sprintf("%s failed %s", col, fe.Tag())
	}

	is := newIssue(code, sheet, row, col, msg)
	is.Expected = expected
	if fe.Tag() != "required" {
		is.Value = fmt.Sprint(fe.Value())
	}
	return is
}

func duplicateIssue(sheet string, row int, col string, k catalog.Key, first int) Issue {
	is := newIssue(CodeDuplicateKey, sheet, row, col,
		fmt.Sprintf("%s appears more than once (first at row %d)", k, first))
	is.Value = k.String()
	return is
}

func unknownIDIssue(sheet string, row int, id, entity string) Issue {
	is := newIssue(CodeUnknownID, sheet, row, PropID,
		fmt.Sprintf("internal id %s does not match any %s in the catalog", id, entity))
	is.Value = id
	return is
}

// uploadedPartKeys returns every part key present on the Parts sheet.
func uploadedPartKeys(parsed *ParseResult) map[catalog.Key]bool {
	keys := make(map[catalog.Key]bool, len(parsed.Parts.Rows))
	for _, r := range parsed.Parts.Rows {
		if k := r.Key(); !k.IsZero() {
			keys[k] = true
		}
	}
	return keys
}

// collector sorts issues by severity as they are added.
type collector struct {
	errors   []Issue
	warnings []Issue
}

func newCollector() *collector {
	return &collector{errors: []Issue{}, warnings: []Issue{}}
}

func (c *collector) add(issues ...Issue) {
	for _, is := range issues {
		if is.Severity == SeverityWarning {
			c.warnings = append(c.warnings, is)
		} else {
			c.errors = append(c.errors, is)
		}
	}
}

func (c *collector) result() *ValidationResult {
	sum := ValidationSummary{
		TotalErrors:     len(c.errors),
		TotalWarnings:   len(c.warnings),
		ErrorsBySheet:   make(map[string]int),
		WarningsBySheet: make(map[string]int),
	}
	for _, is := range c.errors {
		sum.ErrorsBySheet[sheetBucket(is.Sheet)]++
	}
	for _, is := range c.warnings {
		sum.WarningsBySheet[sheetBucket(is.Sheet)]++
	}
	return &ValidationResult{
		Valid:    len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
		Summary:  sum,
	}
}

func sheetBucket(sheet string) string {
	if sheet == "" {
		return "Workbook"
	}
	return sheet
}
