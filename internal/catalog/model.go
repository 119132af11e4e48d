// Package catalog holds the entity model and SQLite persistence for the
// experiment catalog.
//
// Ownership is strict along Experiment -> File -> VariableInstance and
// enforced with ON DELETE CASCADE foreign keys. VariableDefinition and
// Keyword rows are canonical, shared across files and experiments, and are
// never deleted by the indexing engine.
package catalog

import "strings"

// TimeFormat is the canonical timestamp layout stored in the catalog.
const TimeFormat = "2006-01-02 15:04:05"

// MetadataKeys are the experiment descriptor keys merged from metadata.yaml.
var MetadataKeys = []string{"contact", "email", "created", "description", "notes", "keywords"}

// VariableAttributes are the dataset attributes captured onto a
// VariableDefinition.
var VariableAttributes = []string{"long_name", "standard_name", "units"}

// Experiment is one simulation's output tree, the top-level catalog unit.
// Identified by (Name, RootDir).
type Experiment struct {
	ID      int64
	Name    string
	RootDir string

	// Descriptor metadata, populated from metadata.yaml when present.
	Contact     string
	Email       string
	Created     string
	Description string
	Notes       string

	// Keywords holds the canonical (lowercased) keyword set.
	Keywords []string
}

// File is one indexed dataset file, owned by exactly one experiment and
// unique per (experiment, relative path).
type File struct {
	ID           int64
	ExperimentID int64

	// Path is relative to the experiment root; it is the file's stable
	// identity within the experiment.
	Path string

	// IndexTime records when this file was (last) indexed.
	IndexTime string

	// Present is true only if extraction succeeded at index time. A file
	// may exist with Present=false, retaining prior metadata for audit.
	Present bool

	TimeStart string
	TimeEnd   string
	Frequency string

	// Variables are the per-file variable occurrences, owned by this file.
	Variables []*VariableInstance
}

// VariableDefinition is the canonical, deduplicated identity of a variable.
//
// Uniqueness is keyed on (Name, LongName) only: two files declaring the
// same name/long_name but different units collapse into one row, keeping
// the first-seen units. This mirrors the behaviour of the catalogs this
// schema descends from; see the tests before changing the key.
type VariableDefinition struct {
	ID           int64
	Name         string
	LongName     string
	StandardName string
	Units        string
}

// Key returns the interning key for this definition.
func (d *VariableDefinition) Key() string {
	return d.Name + "\x00" + d.LongName
}

// VariableInstance is a per-file occurrence of a VariableDefinition,
// holding the file-specific dimension ordering and chunk layout.
type VariableInstance struct {
	ID           int64
	FileID       int64
	DefinitionID int64

	// Definition is the unattached stub built at extraction time; it is
	// replaced by the canonical row during the serial merge.
	Definition *VariableDefinition

	// Dimensions is the serialized dimension-name tuple, e.g. ('time', 'x').
	Dimensions string

	// Chunking is the serialized chunk-size list, e.g. [1, 10], or
	// "contiguous" for unchunked storage.
	Chunking string
}

// Keyword is a canonical, case-insensitively deduplicated tag.
type Keyword struct {
	ID int64

	// Keyword is the canonical lowercase form.
	Keyword string

	// Raw preserves the casing the keyword was first seen with.
	Raw string
}

// KeywordKey returns the interning key for a keyword string.
func KeywordKey(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
