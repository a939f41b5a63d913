package core

import (
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func removeParts(st *catalog.State, sku string) {
	parts := st.Parts[:0]
	for _, p := range st.Parts {
		if p.SKU != sku {
			parts = append(parts, p)
		}
	}
	st.Parts = parts
	apps := st.Applications[:0]
	for _, a := range st.Applications {
		if a.SKU != sku {
			apps = append(apps, a)
		}
	}
	st.Applications = apps
}

func TestCaptureSnapshot_Manifest(t *testing.T) {
	st := testState()
	u := newUpload().dropPart("ACR-200")
	u.parts[0][2] = "Drum"
	u.aliases = append(u.aliases, []any{"Vocho", "Beetle", "model", "Activo"})
	d := ComputeDiff(u.parse(t), st, PartDeleteAbsence)

	snap := CaptureSnapshot(st, d, snapshotTime)

	assert.Equal(t, snapshotTime, snap.CapturedAt)
	assert.Equal(t, st.Fingerprint(), snap.BaseFingerprint)
	assert.Len(t, snap.State.Parts, 2)

	m := snap.Manifest
	require.Len(t, m.Parts.Updated, 1)
	assert.Equal(t, d.Parts.Updates[0].After.Fingerprint(), m.Parts.Updated[0].PostHash)
	require.Len(t, m.Parts.Deleted, 1)
	assert.Equal(t, catalog.PartKey("ACR-200"), m.Parts.Deleted[0].Key)
	assert.Empty(t, m.Parts.Deleted[0].PostHash)
	require.Len(t, m.Applications.Deleted, 1, "cascaded applications are part of the manifest")
	assert.Equal(t, catalog.ApplicationKey("ACR-200", "Chevrolet", "Aveo"), m.Applications.Deleted[0].Key)
	require.Len(t, m.Aliases.Added, 1)
}

func TestCaptureSnapshot_IsolatedFromState(t *testing.T) {
	st := testState()
	d := ComputeDiff(newUpload().parse(t), st, PartDeleteAbsence)
	snap := CaptureSnapshot(st, d, snapshotTime)

	st.Parts[0].CrossReferences["NATIONAL"][0] = "CHANGED"

	assert.Equal(t, "NAT-100", snap.State.Parts[0].CrossReferences["NATIONAL"][0])
}

func TestPlanRestore_Update(t *testing.T) {
	st := testState()
	u := newUpload()
	u.parts[0][2] = "Drum"
	u.parts[0][4] = "NAT-100"
	snap := CaptureSnapshot(st, ComputeDiff(u.parse(t), st, PartDeleteAbsence), snapshotTime)

	current := st.Clone()
	current.Parts[0].PartType = "Drum"
	current.Parts[0].CrossReferences = catalog.CrossReferences{"NATIONAL": {"NAT-100"}}

	plan, err := PlanRestore(snap, current)
	require.NoError(t, err)

	require.Len(t, plan.UpdateParts, 1)
	assert.Equal(t, "Rotor", plan.UpdateParts[0].PartType)
	assert.Equal(t, st.Parts[0].ID, plan.UpdateParts[0].ID)
	assert.Equal(t, []string{"NAT-100", "NAT-200", "NAT-300"}, plan.UpdateParts[0].CrossReferences["NATIONAL"])
	assert.Equal(t, catalog.RestoredCounts{Parts: 1, CrossReferences: 2}, plan.Counts)
}

func TestPlanRestore_ReinsertsDeletedRecords(t *testing.T) {
	st := testState()
	snap := CaptureSnapshot(st, ComputeDiff(newUpload().dropPart("ACR-200").parse(t), st, PartDeleteAbsence), snapshotTime)

	current := st.Clone()
	removeParts(current, "ACR-200")

	plan, err := PlanRestore(snap, current)
	require.NoError(t, err)

	require.Len(t, plan.InsertParts, 1)
	assert.Equal(t, st.Parts[1].ID, plan.InsertParts[0].ID, "ids survive a restore")
	require.Len(t, plan.InsertApplications, 1)
	assert.Equal(t, st.Applications[2].ID, plan.InsertApplications[0].ID)
	assert.Equal(t, st.Applications[2].PartID, plan.InsertApplications[0].PartID)
	assert.Equal(t, catalog.RestoredCounts{Parts: 1, VehicleApplications: 1}, plan.Counts)
}

func TestPlanRestore_DeletesAddedRecords(t *testing.T) {
	st := testState()
	u := newUpload()
	u.parts = append(u.parts, []any{"ACR-900", "Activo", "Hub", "Front", "NAT-900"})
	u.apps = append(u.apps, []any{"ACR-900", "Activo", "Ford", "Ka", 2001, 2008})
	d := ComputeDiff(u.parse(t), st, PartDeleteAbsence)
	snap := CaptureSnapshot(st, d, snapshotTime)

	current := st.Clone()
	added := d.Parts.Adds[0].After.Clone()
	added.ID = "00000000-0000-4000-8000-000000000900"
	current.Parts = append(current.Parts, added)
	app := d.Applications.Adds[0].After.Clone()
	app.ID, app.PartID = "00000000-0000-4000-8000-000000000901", added.ID
	current.Applications = append(current.Applications, app)

	t.Run("clean", func(t *testing.T) {
		plan, err := PlanRestore(snap, current)
		require.NoError(t, err)
		require.Len(t, plan.DeleteParts, 1)
		assert.Equal(t, added.ID, plan.DeleteParts[0].ID)
		require.Len(t, plan.DeleteApplications, 1)
		assert.Equal(t, catalog.RestoredCounts{Parts: 1, VehicleApplications: 1, CrossReferences: 1}, plan.Counts)
	})

	t.Run("application added later", func(t *testing.T) {
		later := current.Clone()
		later.Applications = append(later.Applications, catalog.VehicleApplication{
			ID: "00000000-0000-4000-8000-000000000902", PartID: added.ID,
			SKU: "ACR-900", Make: "Ford", Model: "Fiesta",
		})

		_, err := PlanRestore(snap, later)

		var de *DivergenceError
		require.True(t, errors.As(err, &de))
		require.Len(t, de.Conflicts, 1)
		assert.Equal(t, "Vehicle Applications", de.Conflicts[0].Sheet)
		assert.Equal(t, "ACR-900 / Ford / Fiesta", de.Conflicts[0].Key)
	})
}

func TestPlanRestore_Divergence(t *testing.T) {
	st := testState()
	u := newUpload()
	u.parts[0][2] = "Drum"
	u.apps[0][5] = 2019
	snap := CaptureSnapshot(st, ComputeDiff(u.parse(t), st, PartDeleteAbsence), snapshotTime)

	current := st.Clone()
	current.Parts[0].PartType = "Disc"
	current.Applications[0].EndYear = catalog.IntPtr(2019)

	plan, err := PlanRestore(snap, current)

	assert.Nil(t, plan)
	var de *DivergenceError
	require.True(t, errors.As(err, &de))
	require.Len(t, de.Conflicts, 1, "only records changed after the import conflict")
	assert.Equal(t, Conflict{Sheet: "Parts", Key: "ACR-100", Reason: "part was modified after the import"}, de.Conflicts[0])
}

func TestDivergenceErrorMessage(t *testing.T) {
	err := &DivergenceError{Conflicts: []Conflict{
		{Sheet: "Parts", Key: "A", Reason: "r1"},
		{Sheet: "Parts", Key: "B", Reason: "r2"},
		{Sheet: "Parts", Key: "C", Reason: "r3"},
		{Sheet: "Parts", Key: "D", Reason: "r4"},
	}}

	want := "catalog diverged since import: 4 conflicting records (Parts A: r1; Parts B: r2; Parts C: r3; ...)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
