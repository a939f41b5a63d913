package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.Seed(testutil.Catalog())
	return s
}

func TestSeedAssignsIDs(t *testing.T) {
	s := seeded(t)

	st, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Parts, 2)
	require.Len(t, st.Applications, 3)

	ids := map[string]string{}
	for _, p := range st.Parts {
		assert.NotEmpty(t, p.ID)
		ids[p.SKU] = p.ID
	}
	for _, a := range st.Applications {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, ids[a.SKU], a.PartID)
	}
}

func TestTxIsolation(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	p := &catalog.Part{SKU: "ACR-900", Status: catalog.StatusActive}
	require.NoError(t, tx.InsertPart(ctx, p))
	assert.NotEmpty(t, p.ID)

	st, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Parts, 2, "uncommitted writes are invisible")

	inTx, err := tx.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, inTx.Parts, 3)

	require.NoError(t, tx.Commit(ctx))
	st, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Parts, 3)

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.NoError(t, tx.Rollback(ctx))
}

func TestTxRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	before, _ := s.LoadCatalog(ctx)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.DeleteCrossReferences(ctx, before.Parts[0].ID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	after, _ := s.LoadCatalog(ctx)
	assert.Equal(t, before.Fingerprint(), after.Fingerprint())
}

func TestConstraints(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	st, _ := s.LoadCatalog(ctx)
	acr100 := st.Parts[0]

	tests := []struct {
		name string
		run  func(tx core.Tx) error
		code string
	}{
		{"duplicate sku", func(tx core.Tx) error {
			return tx.InsertPart(ctx, &catalog.Part{SKU: "ACR-100"})
		}, "DB001"},
		{"delete part with applications", func(tx core.Tx) error {
			return tx.DeletePart(ctx, acr100.ID)
		}, "DB003"},
		{"application of unknown part", func(tx core.Tx) error {
			return tx.InsertApplication(ctx, &catalog.VehicleApplication{PartID: "missing", SKU: "X", Make: "A", Model: "B"})
		}, "DB003"},
		{"duplicate application", func(tx core.Tx) error {
			return tx.InsertApplication(ctx, &catalog.VehicleApplication{PartID: acr100.ID, SKU: "ACR-100", Make: "Nissan", Model: "Tsuru"})
		}, "DB001"},
		{"duplicate alias", func(tx core.Tx) error {
			return tx.InsertAlias(ctx, &catalog.VehicleAlias{Alias: "Chevy", CanonicalName: "Chevrolet", AliasType: catalog.AliasMake})
		}, "DB001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx)

			err = tt.run(tx)
			require.Error(t, err)
			assert.Equal(t, tt.code, core.MapError(err).Code)
		})
	}
}

func TestDeletePartAfterChildren(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	st, _ := s.LoadCatalog(ctx)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	part := st.Parts[0]
	for _, a := range st.Applications {
		if a.PartID == part.ID {
			require.NoError(t, tx.DeleteApplication(ctx, a.ID))
		}
	}
	n, err := tx.DeleteCrossReferences(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, tx.DeletePart(ctx, part.ID))
}

func TestLockCatalogSerializes(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	tx1, _ := s.Begin(ctx)
	require.NoError(t, tx1.LockCatalog(ctx))

	tx2, _ := s.Begin(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx2.LockCatalog(waitCtx), context.DeadlineExceeded)

	require.NoError(t, tx1.Rollback(ctx))
	require.NoError(t, tx2.LockCatalog(ctx))
	require.NoError(t, tx2.Rollback(ctx))
}

func TestLockCatalogSeesLatestCommit(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	reader, _ := s.Begin(ctx)
	_, err := reader.LoadCatalog(ctx)
	require.NoError(t, err)

	writer, _ := s.Begin(ctx)
	require.NoError(t, writer.InsertAlias(ctx, &catalog.VehicleAlias{Alias: "VW", CanonicalName: "Volkswagen", AliasType: catalog.AliasMake}))
	require.NoError(t, writer.Commit(ctx))

	require.NoError(t, reader.LockCatalog(ctx))
	st, err := reader.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Aliases, 2)
	require.NoError(t, reader.Rollback(ctx))
}

func TestImportsAndRollbacks(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	st, _ := s.LoadCatalog(ctx)

	tx, _ := s.Begin(ctx)
	rec := &catalog.ImportRecord{
		FileName: "a.xlsx",
		Snapshot: catalog.Snapshot{State: *st},
	}
	require.NoError(t, tx.InsertImport(ctx, rec))
	require.NoError(t, tx.Commit(ctx))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	_, err := s.GetImport(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrImportNotFound))

	tx, _ = s.Begin(ctx)
	require.NoError(t, tx.InsertRollback(ctx, rec.ID, catalog.RestoredCounts{Parts: 1}))
	assert.Error(t, tx.InsertRollback(ctx, rec.ID, catalog.RestoredCounts{}))
	require.NoError(t, tx.Rollback(ctx))

	got, err := s.GetImport(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RolledBackAt, "rolled back tx leaves no rollback mark")
	assert.Len(t, got.Snapshot.State.Parts, 2)

	tx, _ = s.Begin(ctx)
	require.NoError(t, tx.InsertRollback(ctx, rec.ID, catalog.RestoredCounts{Parts: 1}))
	require.NoError(t, tx.Commit(ctx))

	got, err = s.GetImport(ctx, rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RolledBackAt)
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	boom := errors.New("boom")
	s.FailOn("InsertAlias", boom)

	tx, _ := s.Begin(ctx)
	defer tx.Rollback(ctx)
	assert.ErrorIs(t, tx.InsertAlias(ctx, &catalog.VehicleAlias{Alias: "VW", CanonicalName: "Volkswagen"}), boom)

	s.FailOn("InsertAlias", nil)
	assert.NoError(t, tx.InsertAlias(ctx, &catalog.VehicleAlias{Alias: "VW", CanonicalName: "Volkswagen"}))
}

func TestListAuditFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, _ := s.Begin(ctx)
	for i, action := range []string{"import_apply", "import_rollback", "import_apply"} {
		require.NoError(t, tx.InsertAudit(ctx, &catalog.AuditEntry{Action: action, RowsAffected: i}))
	}
	require.NoError(t, tx.Commit(ctx))

	all, err := s.ListAudit(ctx, catalog.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].RowsAffected, "newest first")

	applies, err := s.ListAudit(ctx, catalog.AuditFilter{Action: "import_apply", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, applies, 1)
	assert.Equal(t, 0, applies[0].RowsAffected)
}
