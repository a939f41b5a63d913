// Package core reconciles an edited parts-catalog workbook against the
// persisted catalog.
//
// This package holds all engine logic, independent of any UI or transport
// layer. It is used by the web handlers and by tests without modification.
//
// # Pipeline
//
// Every stage is a function of its input plus a read of persisted state:
//
//	ParseResult -> ValidationResult -> DiffResult -> ApplyResult
//
//  1. [ParseWorkbook] turns an .xlsx buffer into typed rows per sheet,
//     resolving header variants through the sheet registry.
//  2. [Validator.Validate] runs structural, field-level and referential
//     rules and collects every issue with a stable code.
//  3. [ComputeDiff] classifies each record by business key as added,
//     updated, deleted or unchanged, and lists cascaded child deletes.
//  4. [Service.ApplyPrepared] captures a snapshot, runs [Execute] in one
//     transaction and records the import.
//  5. [Service.Rollback] reverses one import from its snapshot, refusing
//     when the touched records changed afterwards.
//
// # Sheet Registry
//
// Sheets are registered at init time using [Register]. Each
// [SheetDefinition] is a closed table of header variants to canonical
// property names, checked for conflicts when it is registered:
//
//	def, _ := core.Get(core.SheetParts)
//	prop, ok := def.Resolve("National SKUs") // "national_skus", true
//
// # Part Delete Policy
//
// With [PartDeleteAbsence] the Parts sheet is authoritative: a persisted part
// missing from the upload is deleted. With [PartDeleteExplicit] only rows
// with status Eliminar delete. Vehicle applications and aliases are always
// deleted explicitly.
//
// # Error Handling
//
// Validation issues carry codes from issues.go (FILE, SCH, FLD, REF, WRN).
// Errors returned by [Service] methods are mapped to user-facing messages by
// [MapError]:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - FILE001-FILE005: File errors (type, size, corrupt, encoding)
//   - IMP001-IMP006: Import and rollback errors
//   - UPL001-UPL004: Request errors (busy, cancelled, timeout)
//
// # Audit Logging
//
// Every apply and rollback writes an audit entry in its own transaction, so
// the log never records a change that did not commit.
package core
