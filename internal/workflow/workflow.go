// Package workflow implements the multi-entity status-transition engine shared
// by the purchase-request, production, dispatch and quote modules. Each entity
// moves through an ordered set of named statuses with role-gated transitions,
// an append-only history ledger, a pending administrative-action overlay
// (cancellation/unapproval requests resolved by a second approver), and
// modified-after-approval flagging.
//
// Every mutation runs in a single transaction against the module's embedded
// database: entity row, history row and (on creation) the consecutive counter
// commit together or not at all. Lost updates are prevented by a version
// column checked inside the transaction.
package workflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"planta/internal/models"
	"planta/internal/settings"
)

// Pending administrative actions.
const (
	ActionNone         = "none"
	ActionUnapproval   = "unapproval-request"
	ActionCancellation = "cancellation-request"
)

// StatusCanceled is shared by every module; cancel is a status, not a delete.
const StatusCanceled = "canceled"

// Definition parameterizes the engine for one module.
type Definition struct {
	Module       string
	Table        string
	HistoryTable string

	Statuses []string // ordered known set, must include StatusCanceled
	Initial  string
	Approved string // status that stamps approved_by on first entry; "" if none
	Final    string // default archival status; settings final_status overrides

	Backward []string // statuses that snapshot previous_status when entered
	Locked   []string // default locked set; settings locked_statuses overrides
	Tracked  []string // default tracked fields; settings tracked_fields overrides

	Fields []string // domain payload columns, all stored as TEXT

	Prefix  string // default consecutive prefix; settings prefix overrides
	Padding int    // default zero padding; settings padding overrides

	CreateNote string // history note for the initial entry

	// Transitions is the allowed adjacency per built-in status. Custom
	// statuses from settings are reachable from and to any non-archived
	// status. An explicit reopen bypasses the table.
	Transitions map[string][]string
}

// StatusUpdate is the payload for UpdateStatus.
type StatusUpdate struct {
	NewStatus string
	Actor     string
	Notes     string
	Reopen    bool
	// Extra merges optional payload columns (delivered qty, supplier,
	// ticket number, arrival date…) in the same transaction. Absent keys
	// keep their prior value.
	Extra map[string]string
}

// ListOptions filters List.
type ListOptions struct {
	Archived bool
	Status   string
	Search   string
	Page     int
	Limit    int
}

// Sink receives fire-and-forget side effects after a successful commit.
// Implementations must not block; failures are logged by the sink itself and
// never affect the core transaction.
type Sink interface {
	Record(module, recordID, actor, action, summary string)
	Notify(username, title, message, module, recordID string)
}

// Engine executes workflow operations for one module.
type Engine struct {
	db   *sql.DB
	def  Definition
	sink Sink
}

func NewEngine(db *sql.DB, def Definition, sink Sink) *Engine {
	return &Engine{db: db, def: def, sink: sink}
}

// Definition returns the engine's module definition.
func (e *Engine) Definition() Definition { return e.def }

// Migrate creates the module's entity, history and settings tables.
func (e *Engine) Migrate() error {
	cols := ""
	for _, f := range e.def.Fields {
		cols += fmt.Sprintf(", %s TEXT DEFAULT ''", f)
	}
	entity := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		consecutive TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		pending_action TEXT NOT NULL DEFAULT 'none',
		previous_status TEXT,
		has_been_modified INTEGER NOT NULL DEFAULT 0,
		reopened INTEGER NOT NULL DEFAULT 0,
		requested_by TEXT NOT NULL DEFAULT '',
		approved_by TEXT,
		last_status_update_by TEXT NOT NULL DEFAULT '',
		last_modified_by TEXT,
		last_modified_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		version INTEGER NOT NULL DEFAULT 1%s
	)`, e.def.Table, cols)
	if _, err := e.db.Exec(entity); err != nil {
		return fmt.Errorf("%s migration: %w", e.def.Table, err)
	}

	history := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (entity_id) REFERENCES %s(id) ON DELETE CASCADE
	)`, e.def.HistoryTable, e.def.Table)
	if _, err := e.db.Exec(history); err != nil {
		return fmt.Errorf("%s migration: %w", e.def.HistoryTable, err)
	}

	return settings.NewStore(e.db).Migrate()
}

// Settings returns the module's settings store.
func (e *Engine) Settings() *settings.Store {
	return settings.NewStore(e.db)
}

// Create inserts a new entity in the initial status, allocating its
// consecutive from the module counter in the same transaction, and writes the
// initial history entry.
func (e *Engine) Create(fields map[string]string, requestedBy, notes string) (*models.Entity, error) {
	for k := range fields {
		if !e.hasField(k) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}
	if notes == "" {
		notes = e.def.CreateNote
	}

	var id int64
	err := e.inTx(func(tx *sql.Tx) error {
		consecutive, err := settings.AllocateNumber(tx, e.def.Prefix, e.def.Padding)
		if err != nil {
			return err
		}
		now := timestamp()

		cols := []string{"consecutive", "status", "requested_by", "last_status_update_by", "created_at", "updated_at"}
		args := []interface{}{consecutive, e.def.Initial, requestedBy, requestedBy, now, now}
		for _, f := range e.def.Fields {
			if v, ok := fields[f]; ok {
				cols = append(cols, f)
				args = append(args, v)
			}
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		res, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			e.def.Table, strings.Join(cols, ","), placeholders), args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return e.appendHistory(tx, id, e.def.Initial, notes, requestedBy, now)
	})
	if err != nil {
		return nil, err
	}

	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	e.record(ent.Consecutive, requestedBy, "created", "Creado "+ent.Consecutive)
	return ent, nil
}

// Get returns one entity by id.
func (e *Engine) Get(id int64) (*models.Entity, error) {
	row := e.db.QueryRow(fmt.Sprintf("SELECT %s FROM %s WHERE id=?", e.selectCols(), e.def.Table), id)
	ent, err := e.scan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ent, err
}

// GetByConsecutive returns one entity by its human-readable code.
func (e *Engine) GetByConsecutive(consecutive string) (*models.Entity, error) {
	row := e.db.QueryRow(fmt.Sprintf("SELECT %s FROM %s WHERE consecutive=?", e.selectCols(), e.def.Table), consecutive)
	ent, err := e.scan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ent, err
}

// List returns one page of the active or archived partition. Membership is
// purely status-driven: archived means status is the configured final status
// or canceled.
func (e *Engine) List(opts ListOptions) ([]models.Entity, int, error) {
	final := e.Settings().Get(settings.KeyFinalStatus, e.def.Final)

	where := "WHERE status IN (?, ?)"
	if !opts.Archived {
		where = "WHERE status NOT IN (?, ?)"
	}
	args := []interface{}{final, StatusCanceled}
	if opts.Status != "" {
		where += " AND status=?"
		args = append(args, opts.Status)
	}
	if opts.Search != "" {
		where += " AND consecutive LIKE ?"
		args = append(args, "%"+opts.Search+"%")
	}

	var total int
	if err := e.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s %s", e.def.Table, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY id DESC LIMIT ? OFFSET ?",
		e.selectCols(), e.def.Table, where)
	args = append(args, limit, (page-1)*limit)

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []models.Entity{}
	for rows.Next() {
		ent, err := e.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *ent)
	}
	return items, total, rows.Err()
}

// UpdateStatus validates and applies a status transition. Atomically: the
// status column changes, approved_by is stamped on first entry into the
// approved status, the pending action resets, previous_status is snapshotted
// on backward moves and cleared on forward ones, optional extra payload
// columns merge in, and one history entry is appended.
func (e *Engine) UpdateStatus(id int64, req StatusUpdate) (*models.Entity, error) {
	for k := range req.Extra {
		if !e.hasField(k) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}

	var requester string
	err := e.inTx(func(tx *sql.Tx) error {
		ent, err := e.getTx(tx, id)
		if err != nil {
			return err
		}
		requester = ent.RequestedBy

		custom := e.customStatuses(tx)
		if !e.knownStatus(req.NewStatus, custom) {
			return fmt.Errorf("%w: %s", ErrInvalidStatus, req.NewStatus)
		}
		if !req.Reopen && !e.transitionAllowed(ent.Status, req.NewStatus, custom) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, ent.Status, req.NewStatus)
		}

		now := timestamp()
		sets := []string{"status=?", "pending_action='none'", "last_status_update_by=?", "updated_at=?", "version=version+1"}
		args := []interface{}{req.NewStatus, req.Actor, now}

		if e.isBackward(req.NewStatus) || req.Reopen {
			sets = append(sets, "previous_status=?")
			args = append(args, ent.Status)
		} else {
			sets = append(sets, "previous_status=NULL")
		}
		if req.Reopen {
			sets = append(sets, "reopened=1")
		}
		if e.def.Approved != "" && req.NewStatus == e.def.Approved && ent.ApprovedBy == nil {
			sets = append(sets, "approved_by=?")
			args = append(args, req.Actor)
		}
		for _, f := range e.def.Fields {
			if v, ok := req.Extra[f]; ok {
				sets = append(sets, f+"=?")
				args = append(args, v)
			}
		}
		args = append(args, id, ent.Version)

		res, err := tx.Exec(fmt.Sprintf("UPDATE %s SET %s WHERE id=? AND version=?",
			e.def.Table, strings.Join(sets, ",")), args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}
		return e.appendHistory(tx, id, req.NewStatus, req.Notes, req.Actor, now)
	})
	if err != nil {
		return nil, err
	}

	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	e.record(ent.Consecutive, req.Actor, "status", ent.Consecutive+" -> "+req.NewStatus)
	if e.sink != nil && requester != "" && requester != req.Actor {
		e.sink.Notify(requester, "Cambio de estado",
			ent.Consecutive+" pasó a "+req.NewStatus, e.def.Module, ent.Consecutive)
	}
	return ent, nil
}

// RequestAction registers a two-phase administrative request (cancellation or
// unapproval) without changing the status. The current status is snapshotted
// so a denial can restore the record.
func (e *Engine) RequestAction(id int64, action, actor, notes string) (*models.Entity, error) {
	if action != ActionUnapproval && action != ActionCancellation {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	err := e.inTx(func(tx *sql.Tx) error {
		ent, err := e.getTx(tx, id)
		if err != nil {
			return err
		}
		if ent.PendingAction != ActionNone {
			return ErrActionPending
		}
		// A request whose grant could never succeed would leave the overlay
		// stuck until someone denies it; reject it up front.
		target := StatusCanceled
		if action == ActionUnapproval {
			target = e.def.Initial
		}
		if !e.transitionAllowed(ent.Status, target, e.customStatuses(tx)) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, ent.Status, target)
		}
		now := timestamp()
		res, err := tx.Exec(fmt.Sprintf(
			"UPDATE %s SET pending_action=?, previous_status=?, updated_at=?, version=version+1 WHERE id=? AND version=?",
			e.def.Table), action, ent.Status, now, id, ent.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}
		if notes == "" {
			notes = actionLabel(action)
		}
		return e.appendHistory(tx, id, ent.Status, notes, actor, now)
	})
	if err != nil {
		return nil, err
	}
	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	e.record(ent.Consecutive, actor, "action_requested", actionLabel(action)+" en "+ent.Consecutive)
	return ent, nil
}

// ResolveAction grants or denies the pending administrative action. A denial
// clears the overlay and leaves the status untouched. A grant runs the
// ordinary status transition to the action's target (canceled, or the
// snapshotted pre-approval status), which clears the overlay as a side effect.
func (e *Engine) ResolveAction(id int64, grant bool, actor, notes string) (*models.Entity, error) {
	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if ent.PendingAction == ActionNone {
		return nil, ErrNoActionPending
	}

	if grant {
		target := StatusCanceled
		if ent.PendingAction == ActionUnapproval {
			// The snapshot taken at request time is the approved status
			// itself, so it only serves as the target when something moved
			// the record since. Otherwise unapproval returns to the start.
			target = e.def.Initial
			if ent.PreviousStatus != nil && *ent.PreviousStatus != "" && *ent.PreviousStatus != ent.Status {
				target = *ent.PreviousStatus
			}
		}
		if notes == "" {
			notes = actionLabel(ent.PendingAction) + " aprobada"
		}
		updated, err := e.UpdateStatus(id, StatusUpdate{NewStatus: target, Actor: actor, Notes: notes})
		if err != nil {
			return nil, err
		}
		e.notifyRequester(updated, actor, "Solicitud aprobada",
			actionLabel(ent.PendingAction)+" aprobada para "+updated.Consecutive)
		return updated, nil
	}

	err = e.inTx(func(tx *sql.Tx) error {
		cur, err := e.getTx(tx, id)
		if err != nil {
			return err
		}
		if cur.PendingAction == ActionNone {
			return ErrNoActionPending
		}
		now := timestamp()
		res, err := tx.Exec(fmt.Sprintf(
			"UPDATE %s SET pending_action='none', updated_at=?, version=version+1 WHERE id=? AND version=?",
			e.def.Table), now, id, cur.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}
		if notes == "" {
			notes = actionLabel(cur.PendingAction) + " rechazada"
		}
		return e.appendHistory(tx, id, cur.Status, notes, actor, now)
	})
	if err != nil {
		return nil, err
	}
	updated, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	e.record(updated.Consecutive, actor, "action_denied", actionLabel(ent.PendingAction)+" rechazada en "+updated.Consecutive)
	e.notifyRequester(updated, actor, "Solicitud rechazada",
		actionLabel(ent.PendingAction)+" rechazada para "+updated.Consecutive)
	return updated, nil
}

// UpdateDetails applies a partial edit of the payload columns. When the entity
// sits in a locked status and any tracked field actually changes value, the
// entity is flagged as modified and a history entry records the diff. A write
// that sets a field to its existing value never sets the flag.
func (e *Engine) UpdateDetails(id int64, changes map[string]string, actor string) (*models.Entity, error) {
	for k := range changes {
		if !e.hasField(k) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}

	var flagged bool
	err := e.inTx(func(tx *sql.Tx) error {
		ent, err := e.getTx(tx, id)
		if err != nil {
			return err
		}

		var changed []string
		for _, f := range e.def.Fields {
			v, ok := changes[f]
			if !ok {
				continue
			}
			if normalize(v) != normalize(ent.Fields[f]) {
				changed = append(changed, f)
			}
		}
		if len(changed) == 0 {
			return nil
		}

		locked := e.lockedStatuses(tx)
		tracked := e.trackedFields(tx)
		var trackedChanged []string
		if contains(locked, ent.Status) {
			for _, f := range changed {
				if contains(tracked, f) {
					trackedChanged = append(trackedChanged, f)
				}
			}
		}

		now := timestamp()
		sets := []string{"updated_at=?", "version=version+1"}
		args := []interface{}{now}
		for _, f := range changed {
			sets = append(sets, f+"=?")
			args = append(args, changes[f])
		}
		if len(trackedChanged) > 0 {
			sets = append(sets, "has_been_modified=1", "last_modified_by=?", "last_modified_at=?")
			args = append(args, actor, now)
			flagged = true
		}
		args = append(args, id, ent.Version)

		res, err := tx.Exec(fmt.Sprintf("UPDATE %s SET %s WHERE id=? AND version=?",
			e.def.Table, strings.Join(sets, ",")), args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}

		if len(trackedChanged) > 0 {
			// Editing does not change status: the diff entry is recorded
			// at the entity's current status.
			return e.appendHistory(tx, id, ent.Status,
				"Modificado: "+diffNote(ent.Fields, changes, trackedChanged), actor, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if flagged {
		e.record(ent.Consecutive, actor, "modified", ent.Consecutive+" modificado después de aprobación")
		e.notifyRequester(ent, actor, "Registro modificado",
			ent.Consecutive+" fue modificado después de aprobación")
	}
	return ent, nil
}

// ConfirmModification clears the modified flag. This is the only path that
// clears it; no other update may reset the flag as a side effect.
func (e *Engine) ConfirmModification(id int64, actor string) (*models.Entity, error) {
	err := e.inTx(func(tx *sql.Tx) error {
		ent, err := e.getTx(tx, id)
		if err != nil {
			return err
		}
		now := timestamp()
		res, err := tx.Exec(fmt.Sprintf(
			"UPDATE %s SET has_been_modified=0, last_modified_by=?, last_modified_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?",
			e.def.Table), actor, now, now, id, ent.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}
		return e.appendHistory(tx, id, ent.Status, "Modificación confirmada", actor, now)
	})
	if err != nil {
		return nil, err
	}
	ent, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	e.record(ent.Consecutive, actor, "modification_confirmed", "Modificación confirmada en "+ent.Consecutive)
	return ent, nil
}

// AddNote appends a note-only history entry at the current status.
func (e *Engine) AddNote(id int64, actor, notes string) error {
	return e.inTx(func(tx *sql.Tx) error {
		ent, err := e.getTx(tx, id)
		if err != nil {
			return err
		}
		return e.appendHistory(tx, id, ent.Status, notes, actor, timestamp())
	})
}

// History returns the entity's ledger, oldest first.
func (e *Engine) History(id int64) ([]models.HistoryEntry, error) {
	if _, err := e.Get(id); err != nil {
		return nil, err
	}
	rows, err := e.db.Query(fmt.Sprintf(
		"SELECT id, entity_id, status, notes, updated_by, created_at FROM %s WHERE entity_id=? ORDER BY created_at, id",
		e.def.HistoryTable), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.EntityID, &h.Status, &h.Notes, &h.UpdatedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

// Statuses returns the module's known status set: built-ins plus configured
// custom statuses.
func (e *Engine) Statuses() []string {
	out := append([]string{}, e.def.Statuses...)
	for _, cs := range e.Settings().CustomStatuses() {
		if !contains(out, cs.Key) {
			out = append(out, cs.Key)
		}
	}
	return out
}

// Reset wipes the module's entity and history tables and restarts the
// counter. The one sanctioned bulk delete; admin only at the handler layer.
func (e *Engine) Reset() error {
	return e.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + e.def.HistoryTable); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM " + e.def.Table); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, '1')
			ON CONFLICT(key) DO UPDATE SET value='1'`, settings.KeyNextNumber)
		return err
	})
}

// --- internals ---

func (e *Engine) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (e *Engine) selectCols() string {
	cols := []string{
		"id", "consecutive", "status", "pending_action", "previous_status",
		"has_been_modified", "reopened", "requested_by", "approved_by",
		"last_status_update_by", "last_modified_by", "last_modified_at",
		"created_at", "updated_at", "version",
	}
	for _, f := range e.def.Fields {
		cols = append(cols, fmt.Sprintf("COALESCE(%s,'')", f))
	}
	return strings.Join(cols, ",")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (e *Engine) scan(row scanner) (*models.Entity, error) {
	var ent models.Entity
	var prev, approvedBy, lastModBy, lastModAt sql.NullString
	var modified, reopened int

	dest := []interface{}{
		&ent.ID, &ent.Consecutive, &ent.Status, &ent.PendingAction, &prev,
		&modified, &reopened, &ent.RequestedBy, &approvedBy,
		&ent.LastStatusUpdateBy, &lastModBy, &lastModAt,
		&ent.CreatedAt, &ent.UpdatedAt, &ent.Version,
	}
	vals := make([]string, len(e.def.Fields))
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	ent.PreviousStatus = sp(prev)
	ent.ApprovedBy = sp(approvedBy)
	ent.LastModifiedBy = sp(lastModBy)
	ent.LastModifiedAt = sp(lastModAt)
	ent.HasBeenModified = modified != 0
	ent.Reopened = reopened != 0
	ent.Fields = make(map[string]string, len(e.def.Fields))
	for i, f := range e.def.Fields {
		ent.Fields[f] = vals[i]
	}
	return &ent, nil
}

func (e *Engine) getTx(tx *sql.Tx, id int64) (*models.Entity, error) {
	row := tx.QueryRow(fmt.Sprintf("SELECT %s FROM %s WHERE id=?", e.selectCols(), e.def.Table), id)
	ent, err := e.scan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ent, err
}

func (e *Engine) appendHistory(tx *sql.Tx, id int64, status, notes, actor, now string) error {
	_, err := tx.Exec(fmt.Sprintf(
		"INSERT INTO %s (entity_id, status, notes, updated_by, created_at) VALUES (?,?,?,?,?)",
		e.def.HistoryTable), id, status, notes, actor, now)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (e *Engine) customStatuses(tx *sql.Tx) []string {
	var v string
	if err := tx.QueryRow("SELECT value FROM settings WHERE key=?", settings.KeyCustomStatuses).Scan(&v); err != nil || v == "" {
		return nil
	}
	var raw []settings.CustomStatus
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, cs := range raw {
		out = append(out, cs.Key)
	}
	return out
}

func (e *Engine) lockedStatuses(tx *sql.Tx) []string {
	return e.listSetting(tx, settings.KeyLockedStatuses, e.def.Locked)
}

func (e *Engine) trackedFields(tx *sql.Tx) []string {
	return e.listSetting(tx, settings.KeyTrackedFields, e.def.Tracked)
}

func (e *Engine) listSetting(tx *sql.Tx, key string, fallback []string) []string {
	var v string
	if err := tx.QueryRow("SELECT value FROM settings WHERE key=?", key).Scan(&v); err != nil || v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		return fallback
	}
	return out
}

func (e *Engine) knownStatus(s string, custom []string) bool {
	return contains(e.def.Statuses, s) || contains(custom, s)
}

func (e *Engine) transitionAllowed(from, to string, custom []string) bool {
	if from == to {
		// Same-status updates carry extras and a history note.
		return true
	}
	if contains(custom, from) || contains(custom, to) {
		return true
	}
	return contains(e.def.Transitions[from], to)
}

func (e *Engine) isBackward(status string) bool {
	return contains(e.def.Backward, status)
}

func (e *Engine) hasField(name string) bool {
	return contains(e.def.Fields, name)
}

func (e *Engine) record(recordID, actor, action, summary string) {
	if e.sink != nil {
		e.sink.Record(e.def.Module, recordID, actor, action, summary)
	}
}

func (e *Engine) notifyRequester(ent *models.Entity, actor, title, message string) {
	if e.sink != nil && ent.RequestedBy != "" && ent.RequestedBy != actor {
		e.sink.Notify(ent.RequestedBy, title, message, e.def.Module, ent.Consecutive)
	}
}

func actionLabel(action string) string {
	switch action {
	case ActionCancellation:
		return "Solicitud de cancelación"
	case ActionUnapproval:
		return "Solicitud de desaprobación"
	default:
		return action
	}
}

func diffNote(before, changes map[string]string, fields []string) string {
	sorted := append([]string{}, fields...)
	sort.Strings(sorted)
	parts := make([]string, 0, len(sorted))
	for _, f := range sorted {
		parts = append(parts, fmt.Sprintf("%s: '%s' -> '%s'", f, before[f], changes[f]))
	}
	return strings.Join(parts, "; ")
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sp(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
