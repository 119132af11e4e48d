// Package dataset defines the reader capability the catalog engine consumes.
//
// The engine never parses array file formats itself; it works against the
// Dataset interface and receives an Opener from the caller. Concrete
// bindings (e.g. a netCDF reader) register themselves like database/sql
// drivers and stay outside this module.
package dataset

import (
	"fmt"
	"sort"
	"sync"
)

// Dataset is an open, self-describing array file.
type Dataset interface {
	// Variables returns all variables in declaration order.
	Variables() []Variable

	// Variable looks up a variable by name.
	Variable(name string) (Variable, bool)

	// Dimensions returns all dimensions in declaration order.
	Dimensions() []Dimension

	// RecordDimension returns the name of the unlimited (record) dimension,
	// if the file declares one.
	RecordDimension() (string, bool)

	// Close releases the underlying handle.
	Close() error
}

// Dimension describes a named axis of the file.
type Dimension struct {
	Name      string
	Len       int
	Unlimited bool
}

// Variable is a named array within a dataset.
type Variable interface {
	// Name returns the variable name.
	Name() string

	// Attr returns a string attribute value, if present.
	Attr(name string) (string, bool)

	// Dimensions returns the names of the variable's dimensions, in order.
	Dimensions() []string

	// Shape returns the current length along each dimension.
	Shape() []int

	// Chunking returns the chunk size along each dimension, or nil for
	// contiguous storage.
	Chunking() []int

	// Values reads the variable's raw numeric values, flattened in row-major
	// order. Only coordinate and bounds variables are read this way.
	Values() ([]float64, error)
}

// Opener opens a dataset file for reading.
type Opener interface {
	Open(path string) (Dataset, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Dataset, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (Dataset, error) { return f(path) }

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes an opener available under the given driver name.
// It panics if called twice with the same name.
func Register(name string, opener Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if opener == nil {
		panic("dataset: Register opener is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("dataset: Register called twice for driver " + name)
	}
	drivers[name] = opener
}

// Lookup returns a registered opener by driver name.
func Lookup(name string) (Opener, error) {
	driversMu.RLock()
	opener, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataset: unknown driver %q (registered: %v)", name, Drivers())
	}
	return opener, nil
}

// Drivers returns a sorted list of registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
