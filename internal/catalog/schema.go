package catalog

// DBVersion is stamped into PRAGMA user_version on first creation. Opening
// a database with a different non-zero version fails rather than silently
// mixing schemas.
const DBVersion = 3

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment  TEXT NOT NULL,
	root_dir    TEXT NOT NULL,
	contact     TEXT,
	email       TEXT,
	created     TEXT,
	description TEXT,
	notes       TEXT
);
-- composite index since an experiment name may not be unique
CREATE UNIQUE INDEX IF NOT EXISTS ix_experiments_experiment_root_dir
	ON experiments(experiment, root_dir);

CREATE TABLE IF NOT EXISTS keywords (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	-- canonical lowercase form; uniqueness is on this column so casing
	-- differences intern to one row without relying on collation
	keyword TEXT NOT NULL UNIQUE,
	raw     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS keyword_assoc (
	expt_id    INTEGER NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id),
	PRIMARY KEY (expt_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS ncfiles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
	ncfile        TEXT NOT NULL,
	index_time    TEXT,
	present       INTEGER NOT NULL DEFAULT 0,
	time_start    TEXT,
	time_end      TEXT,
	frequency     TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_ncfiles_experiment_ncfile
	ON ncfiles(experiment_id, ncfile);
CREATE INDEX IF NOT EXISTS ix_ncfiles_ncfile ON ncfiles(ncfile);

CREATE TABLE IF NOT EXISTS variables (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	long_name     TEXT NOT NULL DEFAULT '',
	standard_name TEXT,
	units         TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_variables_name_long_name
	ON variables(name, long_name);
CREATE INDEX IF NOT EXISTS ix_variables_name ON variables(name);

CREATE TABLE IF NOT EXISTS ncvars (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ncfile_id   INTEGER NOT NULL REFERENCES ncfiles(id) ON DELETE CASCADE,
	variable_id INTEGER NOT NULL REFERENCES variables(id),
	dimensions  TEXT,
	chunking    TEXT
);
CREATE INDEX IF NOT EXISTS ix_ncvars_ncfile_id ON ncvars(ncfile_id);
CREATE INDEX IF NOT EXISTS ix_ncvars_variable_id ON ncvars(variable_id);

-- optional pointer to an attached access-log database
CREATE TABLE IF NOT EXISTS stats (
	path TEXT NOT NULL
);
`
