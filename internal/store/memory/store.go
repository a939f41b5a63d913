// Package memory is an in-memory implementation of the engine's store
// contract. Transactions work on a private copy of the data and swap it in
// on commit. Constraint failures use the same wording as Postgres so that
// error mapping behaves identically against either store.
//
// It backs the engine and handler tests and local dry runs without a
// database.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/google/uuid"
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

type data struct {
	parts     map[string]catalog.Part
	apps      map[string]catalog.VehicleApplication
	aliases   map[string]catalog.VehicleAlias
	imports   map[string]catalog.ImportRecord
	rollbacks map[string]time.Time
	audit     []catalog.AuditEntry
}

func newData() *data {
	return &data{
		parts:     map[string]catalog.Part{},
		apps:      map[string]catalog.VehicleApplication{},
		aliases:   map[string]catalog.VehicleAlias{},
		imports:   map[string]catalog.ImportRecord{},
		rollbacks: map[string]time.Time{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for id, p := range d.parts {
		c.parts[id] = p.Clone()
	}
	for id, a := range d.apps {
		c.apps[id] = a.Clone()
	}
	for id, a := range d.aliases {
		c.aliases[id] = a
	}
	// Import records are immutable once written.
	for id, r := range d.imports {
		c.imports[id] = r
	}
	for id, t := range d.rollbacks {
		c.rollbacks[id] = t
	}
	c.audit = append([]catalog.AuditEntry(nil), d.audit...)
	return c
}

func (d *data) state() *catalog.State {
	st := &catalog.State{
		Parts:        make([]catalog.Part, 0, len(d.parts)),
		Applications: make([]catalog.VehicleApplication, 0, len(d.apps)),
		Aliases:      make([]catalog.VehicleAlias, 0, len(d.aliases)),
	}
	for _, p := range d.parts {
		st.Parts = append(st.Parts, p.Clone())
	}
	for _, a := range d.apps {
		st.Applications = append(st.Applications, a.Clone())
	}
	for _, a := range d.aliases {
		st.Aliases = append(st.Aliases, a)
	}
	st.Sort()
	return st
}

func (d *data) importRecord(id string) (*catalog.ImportRecord, error) {
	rec, ok := d.imports[id]
	if !ok {
		return nil, core.ErrImportNotFound
	}
	if t, ok := d.rollbacks[id]; ok {
		t := t
		rec.RolledBackAt = &t
	}
	return &rec, nil
}

// Store is a transactional in-memory catalog.
type Store struct {
	mu   sync.RWMutex
	data *data

	// lock is the catalog lock taken by Tx.LockCatalog.
	lock chan struct{}

	failMu sync.Mutex
	failOn map[string]error

	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:   newData(),
		lock:   make(chan struct{}, 1),
		failOn: map[string]error{},
		now:    time.Now,
	}
}

// Seed loads state directly, outside any transaction. Missing ids are
// assigned, and application part ids are resolved from their SKU.
func (s *Store) Seed(state *catalog.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySKU := map[string]string{}
	for _, p := range state.Parts {
		p = p.Clone()
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Status == "" {
			p.Status = catalog.StatusActive
		}
		s.data.parts[p.ID] = p
		bySKU[p.SKU] = p.ID
	}
	for _, a := range state.Applications {
		a = a.Clone()
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.PartID == "" {
			a.PartID = bySKU[a.SKU]
		}
		s.data.apps[a.ID] = a
	}
	for _, a := range state.Aliases {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		s.data.aliases[a.ID] = a
	}
}

// FailOn makes the named Tx method (e.g. "InsertApplication") return err
// from now on. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failOn[op]
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: s}, nil
}

// LoadCatalog returns the committed catalog.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.state(), nil
}

// GetImport returns a committed import record.
func (s *Store) GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.importRecord(id)
}

// ListImports returns import records newest first, without snapshot state.
func (s *Store) ListImports(ctx context.Context, limit, offset int) ([]catalog.ImportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]catalog.ImportRecord, 0, len(s.data.imports))
	for id := range s.data.imports {
		rec, _ := s.data.importRecord(id)
		rec.Snapshot = catalog.Snapshot{}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	return page(recs, limit, offset), nil
}

// ListAudit returns audit entries newest first.
func (s *Store) ListAudit(ctx context.Context, filter catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.AuditEntry
	for i := len(s.data.audit) - 1; i >= 0; i-- {
		e := s.data.audit[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ImportID != "" && e.ImportID != filter.ImportID {
			continue
		}
		out = append(out, e)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Tx is an in-memory transaction. Its working copy is taken on first use,
// and taken again when LockCatalog is acquired before any write.
type Tx struct {
	store  *Store
	data   *data
	dirty  bool
	locked bool
	done   bool
}

func (tx *Tx) work(op string) (*data, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if err := tx.store.injected(op); err != nil {
		return nil, err
	}
	if tx.data == nil {
		tx.store.mu.RLock()
		tx.data = tx.store.data.clone()
		tx.store.mu.RUnlock()
	}
	return tx.data, nil
}

func (tx *Tx) write(op string) (*data, error) {
	d, err := tx.work(op)
	if err == nil {
		tx.dirty = true
	}
	return d, err
}

// LockCatalog takes the store-wide catalog lock until the Tx ends.
func (tx *Tx) LockCatalog(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	if tx.locked {
		return nil
	}
	select {
	case tx.store.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	tx.locked = true
	if !tx.dirty {
		tx.data = nil
	}
	return nil
}

// LoadCatalog returns the catalog as this Tx sees it.
func (tx *Tx) LoadCatalog(ctx context.Context) (*catalog.State, error) {
	d, err := tx.work("LoadCatalog")
	if err != nil {
		return nil, err
	}
	return d.state(), ctx.Err()
}

// InsertPart inserts p and its cross references.
func (tx *Tx) InsertPart(ctx context.Context, p *catalog.Part) error {
	d, err := tx.write("InsertPart")
	if err != nil {
		return err
	}
	for _, existing := range d.parts {
		if existing.SKU == p.SKU {
			return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "parts_acr_sku_key": %s`, p.SKU)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := d.parts[p.ID]; exists {
		return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "parts_pkey": %s`, p.ID)
	}
	d.parts[p.ID] = p.Clone()
	return ctx.Err()
}

// UpdatePart replaces the fields and cross references of an existing part.
func (tx *Tx) UpdatePart(ctx context.Context, p catalog.Part) error {
	d, err := tx.write("UpdatePart")
	if err != nil {
		return err
	}
	cur, ok := d.parts[p.ID]
	if !ok {
		return fmt.Errorf("update part %s: no rows affected", p.ID)
	}
	if cur.SKU != p.SKU {
		return fmt.Errorf("update part %s: acr_sku is immutable", p.ID)
	}
	d.parts[p.ID] = p.Clone()
	return ctx.Err()
}

// DeletePart removes a part without children.
func (tx *Tx) DeletePart(ctx context.Context, id string) error {
	d, err := tx.write("DeletePart")
	if err != nil {
		return err
	}
	p, ok := d.parts[id]
	if !ok {
		return fmt.Errorf("delete part %s: no rows affected", id)
	}
	for _, a := range d.apps {
		if a.PartID == id {
			return errors.New(`ERROR: update or delete on table "parts" violates foreign key constraint "vehicle_applications_part_id_fkey"`)
		}
	}
	if p.CrossReferences.Count() > 0 {
		return errors.New(`ERROR: update or delete on table "parts" violates foreign key constraint "cross_references_part_id_fkey"`)
	}
	delete(d.parts, id)
	return ctx.Err()
}

// DeleteCrossReferences removes every cross reference of a part.
func (tx *Tx) DeleteCrossReferences(ctx context.Context, partID string) (int, error) {
	d, err := tx.write("DeleteCrossReferences")
	if err != nil {
		return 0, err
	}
	p, ok := d.parts[partID]
	if !ok {
		return 0, ctx.Err()
	}
	n := p.CrossReferences.Count()
	p.CrossReferences = nil
	d.parts[partID] = p
	return n, ctx.Err()
}

// InsertApplication inserts a vehicle application of an existing part.
func (tx *Tx) InsertApplication(ctx context.Context, a *catalog.VehicleApplication) error {
	d, err := tx.write("InsertApplication")
	if err != nil {
		return err
	}
	if _, ok := d.parts[a.PartID]; !ok {
		return errors.New(`ERROR: insert or update on table "vehicle_applications" violates foreign key constraint "vehicle_applications_part_id_fkey"`)
	}
	k := a.Key()
	for _, existing := range d.apps {
		if existing.Key() == k {
			return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "vehicle_applications_part_make_model_key": %s`, k)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	d.apps[a.ID] = a.Clone()
	return ctx.Err()
}

// UpdateApplication replaces an existing application.
func (tx *Tx) UpdateApplication(ctx context.Context, a catalog.VehicleApplication) error {
	d, err := tx.write("UpdateApplication")
	if err != nil {
		return err
	}
	if _, ok := d.apps[a.ID]; !ok {
		return fmt.Errorf("update application %s: no rows affected", a.ID)
	}
	d.apps[a.ID] = a.Clone()
	return ctx.Err()
}

// DeleteApplication removes an application.
func (tx *Tx) DeleteApplication(ctx context.Context, id string) error {
	d, err := tx.write("DeleteApplication")
	if err != nil {
		return err
	}
	if _, ok := d.apps[id]; !ok {
		return fmt.Errorf("delete application %s: no rows affected", id)
	}
	delete(d.apps, id)
	return ctx.Err()
}

// InsertAlias inserts an alias.
func (tx *Tx) InsertAlias(ctx context.Context, a *catalog.VehicleAlias) error {
	d, err := tx.write("InsertAlias")
	if err != nil {
		return err
	}
	k := a.Key()
	for _, existing := range d.aliases {
		if existing.Key() == k {
			return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "vehicle_aliases_alias_canonical_name_key": %s`, k)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	d.aliases[a.ID] = *a
	return ctx.Err()
}

// UpdateAlias replaces an existing alias.
func (tx *Tx) UpdateAlias(ctx context.Context, a catalog.VehicleAlias) error {
	d, err := tx.write("UpdateAlias")
	if err != nil {
		return err
	}
	if _, ok := d.aliases[a.ID]; !ok {
		return fmt.Errorf("update alias %s: no rows affected", a.ID)
	}
	d.aliases[a.ID] = a
	return ctx.Err()
}

// DeleteAlias removes an alias.
func (tx *Tx) DeleteAlias(ctx context.Context, id string) error {
	d, err := tx.write("DeleteAlias")
	if err != nil {
		return err
	}
	if _, ok := d.aliases[id]; !ok {
		return fmt.Errorf("delete alias %s: no rows affected", id)
	}
	delete(d.aliases, id)
	return ctx.Err()
}

// InsertImport records an import. The snapshot is stored as given.
func (tx *Tx) InsertImport(ctx context.Context, rec *catalog.ImportRecord) error {
	d, err := tx.write("InsertImport")
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := d.imports[rec.ID]; exists {
		return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "import_history_pkey": %s`, rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = tx.store.now().UTC()
	}
	stored := *rec
	stored.Snapshot.State = *rec.Snapshot.State.Clone()
	stored.RolledBackAt = nil
	d.imports[rec.ID] = stored
	return ctx.Err()
}

// GetImport returns an import record as this Tx sees it.
func (tx *Tx) GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error) {
	d, err := tx.work("GetImport")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.importRecord(id)
}

// InsertRollback marks an import as rolled back.
func (tx *Tx) InsertRollback(ctx context.Context, importID string, _ catalog.RestoredCounts) error {
	d, err := tx.write("InsertRollback")
	if err != nil {
		return err
	}
	if _, ok := d.imports[importID]; !ok {
		return errors.New(`ERROR: insert or update on table "import_rollbacks" violates foreign key constraint "import_rollbacks_import_id_fkey"`)
	}
	if _, ok := d.rollbacks[importID]; ok {
		return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "import_rollbacks_pkey": %s`, importID)
	}
	d.rollbacks[importID] = tx.store.now().UTC()
	return ctx.Err()
}

// InsertAudit appends an audit entry.
func (tx *Tx) InsertAudit(ctx context.Context, e *catalog.AuditEntry) error {
	d, err := tx.write("InsertAudit")
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.store.now().UTC()
	}
	d.audit = append(d.audit, *e)
	return ctx.Err()
}

// Commit publishes the Tx's writes and releases the catalog lock.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		tx.finish()
		return err
	}
	if err := tx.store.injected("Commit"); err != nil {
		tx.finish()
		return err
	}
	if tx.dirty {
		tx.store.mu.Lock()
		tx.store.data = tx.data
		tx.store.mu.Unlock()
	}
	tx.finish()
	return nil
}

// Rollback discards the Tx's writes. It is a no-op after Commit.
func (tx *Tx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *Tx) finish() {
	tx.done = true
	tx.data = nil
	if tx.locked {
		tx.locked = false
		<-tx.store.lock
	}
}
