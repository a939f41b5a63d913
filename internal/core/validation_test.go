package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CleanUpload(t *testing.T) {
	res := newTestValidator(PartDeleteAbsence).Validate(newUpload().parse(t), testState())

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 0, res.Summary.TotalErrors)
}

func TestValidate_RowErrors(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(u *upload)
		want   IssueCode
		column string
	}{
		{
			name:   "start year after end year",
			edit:   func(u *upload) { u.apps[0][4], u.apps[0][5] = 2020, 2010 },
			want:   CodeYearRange,
			column: PropStartYear,
		},
		{
			name:   "year out of bounds",
			edit:   func(u *upload) { u.apps[0][4] = 1850 },
			want:   CodeYearBounds,
			column: PropStartYear,
		},
		{
			name:   "year not a number",
			edit:   func(u *upload) { u.apps[0][5] = "20x7" },
			want:   CodeInvalidNumber,
			column: PropEndYear,
		},
		{
			name:   "missing make",
			edit:   func(u *upload) { u.apps[1][2] = "" },
			want:   CodeRequired,
			column: PropMake,
		},
		{
			name:   "invalid part status",
			edit:   func(u *upload) { u.parts[0][1] = "Borrado" },
			want:   CodeInvalidStatus,
			column: PropStatus,
		},
		{
			name:   "inactive is not a child status",
			edit:   func(u *upload) { u.apps[0][1] = "Inactivo" },
			want:   CodeInvalidStatus,
			column: PropStatus,
		},
		{
			name:   "alias type",
			edit:   func(u *upload) { u.aliases[0][2] = "brand" },
			want:   CodeAliasType,
			column: PropAliasType,
		},
		{
			name:   "sku too long",
			edit:   func(u *upload) { u.parts = append(u.parts, []any{"ACR-" + strings.Repeat("9", 60), "Activo", "", "", ""}) },
			want:   CodeMaxLength,
			column: PropSKU,
		},
		{
			name:   "duplicate part key",
			edit:   func(u *upload) { u.parts = append(u.parts, []any{"ACR-200", "Activo", "Drum", "Rear", ""}) },
			want:   CodeDuplicateKey,
			column: PropSKU,
		},
		{
			name: "duplicate application key",
			edit: func(u *upload) {
				u.apps = append(u.apps, []any{"ACR-200", "Activo", "Chevrolet", "Aveo", 2009, 2010})
			},
			want:   CodeDuplicateKey,
			column: PropSKU,
		},
		{
			name: "orphan application",
			edit: func(u *upload) {
				u.apps = append(u.apps, []any{"ACR-404", "Activo", "Ford", "Ka", 2001, 2008})
			},
			want:   CodeOrphan,
			column: PropSKU,
		},
		{
			name:   "cross reference too long",
			edit:   func(u *upload) { u.parts[1][4] = "NAT-" + strings.Repeat("9", 60) },
			want:   CodeMaxLength,
			column: BrandProperty("NATIONAL"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpload()
			tt.edit(u)
			res := newTestValidator(PartDeleteAbsence).Validate(u.parse(t), testState())

			assert.False(t, res.Valid)
			require.Contains(t, codes(res.Errors), tt.want)
			for _, is := range res.Errors {
				if is.Code == tt.want {
					assert.Equal(t, tt.column, is.Column)
					assert.Equal(t, SeverityError, is.Severity)
					assert.NotZero(t, is.Row)
				}
			}
		})
	}
}

func TestValidate_InternalIDs(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		parsed := newUpload().parse(t)
		parsed.Parts.Rows[0].ID = "not-a-uuid"

		res := newTestValidator(PartDeleteExplicit).Validate(parsed, testState())
		assert.Contains(t, codes(res.Errors), CodeInvalidUUID)
	})

	t.Run("unknown id is distinct from unknown key", func(t *testing.T) {
		st := testState()
		parsed := newUpload().parse(t)
		parsed.Parts.Rows[0].ID = "11111111-1111-4111-8111-111111111111"

		res := newTestValidator(PartDeleteExplicit).Validate(parsed, st)
		assert.Contains(t, codes(res.Errors), CodeUnknownID)
		assert.NotContains(t, codes(res.Errors), CodeOrphan)
	})

	t.Run("id of another part", func(t *testing.T) {
		st := testState()
		parsed := newUpload().parse(t)
		parsed.Parts.Rows[0].ID = st.Parts[1].ID

		res := newTestValidator(PartDeleteExplicit).Validate(parsed, st)
		assert.Contains(t, codes(res.Errors), CodeKeyImmutable)
	})
}

func TestValidate_MissingHeaderSkipsRows(t *testing.T) {
	parsed := newUpload().parse(t)
	parsed.Applications.MissingHeaders = []string{PropModel}
	parsed.Applications.Rows[0].Make = ""

	res := newTestValidator(PartDeleteAbsence).Validate(parsed, testState())

	assert.Equal(t, []IssueCode{CodeMissingHeader}, codes(res.Errors))
	assert.Equal(t, 1, res.Summary.ErrorsBySheet["Vehicle Applications"])
}

func TestValidate_CascadeWarnings(t *testing.T) {
	t.Run("explicit delete", func(t *testing.T) {
		u := newUpload()
		u.parts[0][1] = "Eliminar"
		u.apps = without(u.apps, func(r []any) bool { return r[0] == "ACR-100" })

		res := newTestValidator(PartDeleteAbsence).Validate(u.parse(t), testState())

		assert.True(t, res.Valid, "cascade notices never block: %v", res.Errors)
		assert.Equal(t, 2, countCode(res.Warnings, CodeCascadeApp))
		assert.Equal(t, 3, countCode(res.Warnings, CodeCascadeCrossRef))
		assert.Equal(t, 0, countCode(res.Warnings, CodeRemovedByAbsence))
		assert.Equal(t, 5, res.Summary.WarningsBySheet["Parts"])
	})

	t.Run("absence delete", func(t *testing.T) {
		u := newUpload().dropPart("ACR-200")

		res := newTestValidator(PartDeleteAbsence).Validate(u.parse(t), testState())

		assert.True(t, res.Valid)
		assert.Equal(t, 1, countCode(res.Warnings, CodeRemovedByAbsence))
		assert.Equal(t, 1, countCode(res.Warnings, CodeCascadeApp))
		assert.Equal(t, 0, countCode(res.Warnings, CodeCascadeCrossRef))
	})

	t.Run("explicit policy ignores absence", func(t *testing.T) {
		u := newUpload().dropPart("ACR-200")

		res := newTestValidator(PartDeleteExplicit).Validate(u.parse(t), testState())

		assert.True(t, res.Valid)
		assert.Empty(t, res.Warnings)
	})

	t.Run("kept application on deleted part", func(t *testing.T) {
		u := newUpload()
		u.parts[1][1] = "Eliminar"

		res := newTestValidator(PartDeleteAbsence).Validate(u.parse(t), testState())

		assert.False(t, res.Valid)
		assert.Equal(t, []IssueCode{CodeDeletedParent}, codes(res.Errors))
	})
}

func TestValidate_DataQualityWarnings(t *testing.T) {
	u := newUpload()
	u.parts[0][4] = "NAT-100 NAT-200 NAT-300"
	u.parts[1][4] = "[DELETE]NAT-777"
	u.aliases = append(u.aliases, []any{"Vocho", "Beetle", "model", "Eliminar"})

	res := newTestValidator(PartDeleteAbsence).Validate(u.parse(t), testState())

	assert.True(t, res.Valid)
	assert.Equal(t, 1, countCode(res.Warnings, CodeLegacyDelimiter))
	assert.Equal(t, 2, countCode(res.Warnings, CodeDeleteNotFound))
}

func TestValidationFromParseError(t *testing.T) {
	res := ValidationFromParseError(&ParseError{Code: CodeMissingSheet, Sheet: "Parts", Message: "missing"})

	assert.False(t, res.Valid)
	assert.Equal(t, []IssueCode{CodeMissingSheet}, codes(res.Errors))
	assert.Equal(t, 1, res.Summary.ErrorsBySheet["Parts"])
}
