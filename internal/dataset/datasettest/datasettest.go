// Package datasettest provides in-memory datasets for tests.
package datasettest

import (
	"fmt"
	"os"

	"github.com/angus-g/cosima-cookbook/internal/dataset"
)

// Var is an in-memory variable.
type Var struct {
	VarName string
	Attrs   map[string]string
	Dims    []string
	Lens    []int
	Chunks  []int
	Data    []float64
}

// Name implements dataset.Variable.
func (v *Var) Name() string { return v.VarName }

// Attr implements dataset.Variable.
func (v *Var) Attr(name string) (string, bool) {
	val, ok := v.Attrs[name]
	return val, ok
}

// Dimensions implements dataset.Variable.
func (v *Var) Dimensions() []string { return v.Dims }

// Shape implements dataset.Variable.
func (v *Var) Shape() []int { return v.Lens }

// Chunking implements dataset.Variable.
func (v *Var) Chunking() []int { return v.Chunks }

// Values implements dataset.Variable.
func (v *Var) Values() ([]float64, error) {
	if v.Data == nil {
		return nil, fmt.Errorf("variable %s has no data", v.VarName)
	}
	return v.Data, nil
}

// DS is an in-memory dataset.
type DS struct {
	Dims   []dataset.Dimension
	Vars   []*Var
	Closed bool
}

// Variables implements dataset.Dataset.
func (d *DS) Variables() []dataset.Variable {
	out := make([]dataset.Variable, len(d.Vars))
	for i, v := range d.Vars {
		out[i] = v
	}
	return out
}

// Variable implements dataset.Dataset.
func (d *DS) Variable(name string) (dataset.Variable, bool) {
	for _, v := range d.Vars {
		if v.VarName == name {
			return v, true
		}
	}
	return nil, false
}

// Dimensions implements dataset.Dataset.
func (d *DS) Dimensions() []dataset.Dimension { return d.Dims }

// RecordDimension implements dataset.Dataset.
func (d *DS) RecordDimension() (string, bool) {
	for _, dim := range d.Dims {
		if dim.Unlimited {
			return dim.Name, true
		}
	}
	return "", false
}

// Close implements dataset.Dataset.
func (d *DS) Close() error {
	d.Closed = true
	return nil
}

// Opener serves datasets from a path-keyed map. Paths not in the map
// report fs.ErrNotExist; paths in Corrupt fail with a generic open error.
type Opener struct {
	Files   map[string]*DS
	Corrupt map[string]bool
}

// NewOpener returns an empty test opener.
func NewOpener() *Opener {
	return &Opener{
		Files:   make(map[string]*DS),
		Corrupt: make(map[string]bool),
	}
}

// Open implements dataset.Opener.
func (o *Opener) Open(path string) (dataset.Dataset, error) {
	if o.Corrupt[path] {
		return nil, fmt.Errorf("open %s: not a valid dataset", path)
	}
	ds, ok := o.Files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return ds, nil
}

// TimeSeries builds a dataset with an unlimited time dimension holding the
// given time values, in the given units/calendar, plus one data variable.
func TimeSeries(varName string, times []float64, units, calendar string) *DS {
	ds := &DS{
		Dims: []dataset.Dimension{
			{Name: "time", Len: len(times), Unlimited: true},
			{Name: "x", Len: 10},
		},
	}
	timeAttrs := map[string]string{}
	if units != "" {
		timeAttrs["units"] = units
	}
	if calendar != "" {
		timeAttrs["calendar"] = calendar
	}
	ds.Vars = append(ds.Vars, &Var{
		VarName: "time",
		Attrs:   timeAttrs,
		Dims:    []string{"time"},
		Lens:    []int{len(times)},
		Data:    times,
	})
	ds.Vars = append(ds.Vars, &Var{
		VarName: varName,
		Attrs:   map[string]string{"long_name": varName},
		Dims:    []string{"time", "x"},
		Lens:    []int{len(times), 10},
		Chunks:  []int{1, 10},
	})
	return ds
}
