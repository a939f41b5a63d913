package core

import (
	"fmt"
	"testing"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/testutil"
	"github.com/stretchr/testify/require"
)

// testState returns testutil.Catalog with deterministic ids.
func testState() *catalog.State {
	st := testutil.Catalog()
	partIDs := map[string]string{}
	for i := range st.Parts {
		st.Parts[i].ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", i+1)
		partIDs[st.Parts[i].SKU] = st.Parts[i].ID
	}
	for i := range st.Applications {
		st.Applications[i].ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", 100+i)
		st.Applications[i].PartID = partIDs[st.Applications[i].SKU]
	}
	for i := range st.Aliases {
		st.Aliases[i].ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", 200+i)
	}
	return st
}

// upload is an editable copy of the workbook that matches testState.
type upload struct {
	parts   [][]any
	apps    [][]any
	aliases [][]any
}

func newUpload() *upload {
	return &upload{
		parts:   testutil.CatalogParts(),
		apps:    testutil.CatalogApplications(),
		aliases: [][]any{{"Chevy", "Chevrolet", "make", "Activo"}},
	}
}

func (u *upload) parse(t *testing.T) *ParseResult {
	t.Helper()
	data := testutil.Workbook(t,
		testutil.Parts(testutil.PartsHeader, u.parts...),
		testutil.Applications(testutil.ApplicationsHeader, u.apps...),
		testutil.Aliases(testutil.AliasesHeader, u.aliases...),
	)
	parsed, err := ParseWorkbook(data)
	require.NoError(t, err)
	return parsed
}

// dropPart removes a part row and its application rows.
func (u *upload) dropPart(sku string) *upload {
	u.parts = without(u.parts, func(r []any) bool { return r[0] == sku })
	u.apps = without(u.apps, func(r []any) bool { return r[0] == sku })
	return u
}

func without(rows [][]any, drop func([]any) bool) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		if !drop(r) {
			out = append(out, r)
		}
	}
	return out
}

func codes(issues []Issue) []IssueCode {
	out := make([]IssueCode, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func countCode(issues []Issue, code IssueCode) int {
	n := 0
	for _, is := range issues {
		if is.Code == code {
			n++
		}
	}
	return n
}

func newTestValidator(policy PartDeletePolicy) *Validator {
	return NewValidator(ValidatorOptions{MinYear: 1900, MaxYear: 2030, Policy: policy})
}
