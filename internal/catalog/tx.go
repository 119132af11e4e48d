package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/angus-g/cosima-cookbook/internal/cerr"
)

// Tx is one catalog transaction. All reconciliation for an experiment
// happens inside a single Tx so that partial results are never visible.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return cerr.Wrap(cerr.CodeReconcileCommit, err)
	}
	return nil
}

// Rollback rolls the transaction back. Safe to defer after Commit.
func (t *Tx) Rollback() {
	if !t.done {
		_ = t.tx.Rollback()
	}
}

// nullable maps "" to NULL so optional text columns stay NULL in the
// database rather than accumulating empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func text(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// GetExperiment looks up an experiment by its (name, root_dir) identity.
// Returns nil if no such experiment exists.
func (t *Tx) GetExperiment(ctx context.Context, name, rootDir string) (*Experiment, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, experiment, root_dir, contact, email, created, description, notes
		FROM experiments WHERE experiment = ? AND root_dir = ?
	`, name, rootDir)
	return scanExperiment(row)
}

// FindExperimentByName looks up an experiment by name alone. Returns nil if
// none exists, and an error if the name is ambiguous across root
// directories.
func (t *Tx) FindExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, experiment, root_dir, contact, email, created, description, notes
		FROM experiments WHERE experiment = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query experiment: %w", err)
	}
	defer rows.Close()

	var expt *Experiment
	for rows.Next() {
		if expt != nil {
			return nil, fmt.Errorf("experiment name %q is ambiguous; multiple root directories", name)
		}
		expt, err = scanExperimentRows(rows)
		if err != nil {
			return nil, err
		}
	}
	return expt, rows.Err()
}

func scanExperiment(row *sql.Row) (*Experiment, error) {
	var e Experiment
	var contact, email, created, description, notes sql.NullString
	err := row.Scan(&e.ID, &e.Name, &e.RootDir, &contact, &email, &created, &description, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan experiment: %w", err)
	}
	e.Contact, e.Email, e.Created = text(contact), text(email), text(created)
	e.Description, e.Notes = text(description), text(notes)
	return &e, nil
}

func scanExperimentRows(rows *sql.Rows) (*Experiment, error) {
	var e Experiment
	var contact, email, created, description, notes sql.NullString
	err := rows.Scan(&e.ID, &e.Name, &e.RootDir, &contact, &email, &created, &description, &notes)
	if err != nil {
		return nil, fmt.Errorf("scan experiment: %w", err)
	}
	e.Contact, e.Email, e.Created = text(contact), text(email), text(created)
	e.Description, e.Notes = text(description), text(notes)
	return &e, nil
}

// CreateExperiment inserts a new experiment row and sets its ID.
func (t *Tx) CreateExperiment(ctx context.Context, e *Experiment) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO experiments (experiment, root_dir, contact, email, created, description, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Name, e.RootDir, nullable(e.Contact), nullable(e.Email), nullable(e.Created),
		nullable(e.Description), nullable(e.Notes))
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// UpdateExperimentMetadata writes the descriptor metadata columns.
func (t *Tx) UpdateExperimentMetadata(ctx context.Context, e *Experiment) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE experiments SET contact = ?, email = ?, created = ?, description = ?, notes = ?
		WHERE id = ?
	`, nullable(e.Contact), nullable(e.Email), nullable(e.Created),
		nullable(e.Description), nullable(e.Notes), e.ID)
	if err != nil {
		return fmt.Errorf("update experiment metadata: %w", err)
	}
	return nil
}

// DeleteExperiment removes an experiment; its files and their variable
// instances cascade at the DDL level. Canonical variables and keywords
// survive.
func (t *Tx) DeleteExperiment(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	return nil
}

// ReplaceKeywords replaces the experiment's keyword set with the given
// canonical keyword ids.
func (t *Tx) ReplaceKeywords(ctx context.Context, exptID int64, keywordIDs []int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM keyword_assoc WHERE expt_id = ?`, exptID); err != nil {
		return fmt.Errorf("clear keywords: %w", err)
	}
	for _, kwID := range keywordIDs {
		_, err := t.tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO keyword_assoc (expt_id, keyword_id) VALUES (?, ?)
		`, exptID, kwID)
		if err != nil {
			return fmt.Errorf("associate keyword: %w", err)
		}
	}
	return nil
}

// ExperimentKeywords returns the canonical keywords attached to an
// experiment, sorted.
func (t *Tx) ExperimentKeywords(ctx context.Context, exptID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT k.keyword FROM keywords k
		JOIN keyword_assoc a ON a.keyword_id = k.id
		WHERE a.expt_id = ? ORDER BY k.keyword
	`, exptID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// ListFiles returns all file rows for an experiment, without their
// variable instances.
func (t *Tx) ListFiles(ctx context.Context, exptID int64) ([]*File, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, experiment_id, ncfile, index_time, present, time_start, time_end, frequency
		FROM ncfiles WHERE experiment_id = ?
	`, exptID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		var f File
		var indexTime, timeStart, timeEnd, frequency sql.NullString
		if err := rows.Scan(&f.ID, &f.ExperimentID, &f.Path, &indexTime, &f.Present,
			&timeStart, &timeEnd, &frequency); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.IndexTime = text(indexTime)
		f.TimeStart, f.TimeEnd, f.Frequency = text(timeStart), text(timeEnd), text(frequency)
		files = append(files, &f)
	}
	return files, rows.Err()
}

// GetFile returns one file row by (experiment, relative path), or nil.
func (t *Tx) GetFile(ctx context.Context, exptID int64, path string) (*File, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, experiment_id, ncfile, index_time, present, time_start, time_end, frequency
		FROM ncfiles WHERE experiment_id = ? AND ncfile = ?
	`, exptID, path)
	var f File
	var indexTime, timeStart, timeEnd, frequency sql.NullString
	err := row.Scan(&f.ID, &f.ExperimentID, &f.Path, &indexTime, &f.Present,
		&timeStart, &timeEnd, &frequency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.IndexTime = text(indexTime)
	f.TimeStart, f.TimeEnd, f.Frequency = text(timeStart), text(timeEnd), text(frequency)
	return &f, nil
}

// InsertFile inserts a file row (without its variable instances) and sets
// its ID.
func (t *Tx) InsertFile(ctx context.Context, f *File) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO ncfiles (experiment_id, ncfile, index_time, present, time_start, time_end, frequency)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ExperimentID, f.Path, nullable(f.IndexTime), f.Present,
		nullable(f.TimeStart), nullable(f.TimeEnd), nullable(f.Frequency))
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.Path, err)
	}
	f.ID, err = res.LastInsertId()
	return err
}

// UpdateFile rewrites a file row's extraction results in place.
func (t *Tx) UpdateFile(ctx context.Context, f *File) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE ncfiles SET index_time = ?, present = ?, time_start = ?, time_end = ?, frequency = ?
		WHERE id = ?
	`, nullable(f.IndexTime), f.Present, nullable(f.TimeStart), nullable(f.TimeEnd),
		nullable(f.Frequency), f.ID)
	if err != nil {
		return fmt.Errorf("update file %s: %w", f.Path, err)
	}
	return nil
}

// DeleteFile removes a file row; its variable instances cascade.
func (t *Tx) DeleteFile(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM ncfiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// SetFilePresent flips a file's presence flag, leaving all other metadata
// (and its variable instances) untouched.
func (t *Tx) SetFilePresent(ctx context.Context, id int64, present bool) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE ncfiles SET present = ? WHERE id = ?`, present, id); err != nil {
		return fmt.Errorf("set file presence: %w", err)
	}
	return nil
}

// DeleteFileVariables removes all variable instances of a file, ahead of a
// re-index rewriting them.
func (t *Tx) DeleteFileVariables(ctx context.Context, fileID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM ncvars WHERE ncfile_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete file variables: %w", err)
	}
	return nil
}

// InsertVariableInstance inserts a per-file variable occurrence and sets
// its ID. DefinitionID must already reference a canonical row.
func (t *Tx) InsertVariableInstance(ctx context.Context, v *VariableInstance) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO ncvars (ncfile_id, variable_id, dimensions, chunking)
		VALUES (?, ?, ?, ?)
	`, v.FileID, v.DefinitionID, nullable(v.Dimensions), nullable(v.Chunking))
	if err != nil {
		return fmt.Errorf("insert variable instance: %w", err)
	}
	v.ID, err = res.LastInsertId()
	return err
}

// ListVariableInstances returns the variable instances of a file with
// their canonical definitions attached.
func (t *Tx) ListVariableInstances(ctx context.Context, fileID int64) ([]*VariableInstance, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT nv.id, nv.ncfile_id, nv.variable_id, nv.dimensions, nv.chunking,
		       v.name, v.long_name, v.standard_name, v.units
		FROM ncvars nv JOIN variables v ON v.id = nv.variable_id
		WHERE nv.ncfile_id = ?
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query variable instances: %w", err)
	}
	defer rows.Close()

	var out []*VariableInstance
	for rows.Next() {
		var vi VariableInstance
		var def VariableDefinition
		var dims, chunking, standardName, units sql.NullString
		if err := rows.Scan(&vi.ID, &vi.FileID, &vi.DefinitionID, &dims, &chunking,
			&def.Name, &def.LongName, &standardName, &units); err != nil {
			return nil, fmt.Errorf("scan variable instance: %w", err)
		}
		def.ID = vi.DefinitionID
		def.StandardName, def.Units = text(standardName), text(units)
		vi.Dimensions, vi.Chunking = text(dims), text(chunking)
		vi.Definition = &def
		out = append(out, &vi)
	}
	return out, rows.Err()
}

// findVariableDefinition looks up a canonical variable row by its
// (name, long_name) key. Returns 0 if absent.
func (t *Tx) findVariableDefinition(ctx context.Context, name, longName string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT id FROM variables WHERE name = ? AND long_name = ?
	`, name, longName).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query variable definition: %w", err)
	}
	return id, nil
}

// insertVariableDefinition stages a new canonical variable row.
func (t *Tx) insertVariableDefinition(ctx context.Context, d *VariableDefinition) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO variables (name, long_name, standard_name, units)
		VALUES (?, ?, ?, ?)
	`, d.Name, d.LongName, nullable(d.StandardName), nullable(d.Units))
	if err != nil {
		return fmt.Errorf("insert variable definition %s: %w", d.Name, err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// findKeyword looks up a canonical keyword row by its lowercase form.
// Returns 0 if absent.
func (t *Tx) findKeyword(ctx context.Context, canonical string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM keywords WHERE keyword = ?`, canonical).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query keyword: %w", err)
	}
	return id, nil
}

// insertKeyword stages a new canonical keyword row.
func (t *Tx) insertKeyword(ctx context.Context, k *Keyword) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO keywords (keyword, raw) VALUES (?, ?)
	`, k.Keyword, k.Raw)
	if err != nil {
		return fmt.Errorf("insert keyword %s: %w", k.Keyword, err)
	}
	k.ID, err = res.LastInsertId()
	return err
}

// Stats summarizes one experiment's catalog footprint.
type Stats struct {
	Files               int64
	PresentFiles        int64
	VariableInstances   int64
	VariableDefinitions int64
}

// ExperimentStats reports row counts for an experiment.
func (t *Tx) ExperimentStats(ctx context.Context, exptID int64) (*Stats, error) {
	var s Stats
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(present), 0) FROM ncfiles WHERE experiment_id = ?
	`, exptID).Scan(&s.Files, &s.PresentFiles)
	if err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(nv.id), COUNT(DISTINCT nv.variable_id)
		FROM ncvars nv JOIN ncfiles f ON f.id = nv.ncfile_id
		WHERE f.experiment_id = ?
	`, exptID).Scan(&s.VariableInstances, &s.VariableDefinitions)
	if err != nil {
		return nil, fmt.Errorf("count variables: %w", err)
	}
	return &s, nil
}
