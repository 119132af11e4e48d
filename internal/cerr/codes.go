// Package cerr provides structured error handling for the catalog engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 2XX: dataset/file extraction errors (local, recovered per file)
//   - 3XX: database errors (fatal for the current batch)
//   - 4XX: discovery and lookup errors
package cerr

// Category defines error categories for classification.
type Category string

const (
	// CategoryDataset indicates errors reading a dataset file.
	CategoryDataset Category = "DATASET"
	// CategoryStore indicates catalog database errors.
	CategoryStore Category = "STORE"
	// CategoryDiscovery indicates filesystem discovery errors.
	CategoryDiscovery Category = "DISCOVERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the current batch must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the batch continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Dataset errors (200-299): absorbed at the file-indexer boundary,
	// the file is recorded with present=false and the batch continues.
	CodeDatasetOpen    = "ERR_201_DATASET_OPEN"
	CodeFileNotFound   = "ERR_202_FILE_NOT_FOUND"
	CodeEmptyDimension = "ERR_203_EMPTY_DIMENSION"
	// A non-compliant time variable skips time extraction only; the file
	// is still indexed normally.
	CodeNonCompliantTime = "ERR_204_NONCOMPLIANT_TIME"
	// A record dimension with no variable of the same name is treated as
	// corruption: time coverage cannot be read, so the file fails.
	CodeNoTimeVariable = "ERR_205_NO_TIME_VARIABLE"

	// Store errors (300-399): fatal for the current experiment's batch.
	CodeDBOpen          = "ERR_301_DB_OPEN"
	CodeDBVersion       = "ERR_302_DB_VERSION"
	CodeReconcileCommit = "ERR_303_RECONCILE_COMMIT"

	// Discovery and lookup errors (400-499).
	CodeDiscovery    = "ERR_401_DISCOVERY"
	CodeNoExperiment = "ERR_402_NO_EXPERIMENT"
)

// categoryFromCode extracts category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '2':
		return CategoryDataset
	case '3':
		return CategoryStore
	case '4':
		return CategoryDiscovery
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from an error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryStore:
		return SeverityFatal
	case CategoryDiscovery:
		return SeverityWarning
	default:
		return SeverityError
	}
}
