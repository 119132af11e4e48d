// Package netcdf implements a read-only dataset driver for the netCDF
// classic formats (CDF-1 and CDF-2, 64-bit offsets).
//
// The classic header is parsed eagerly; variable data is read on demand,
// which suits the engine's access pattern of reading only coordinate and
// bounds variables. netCDF-4 files (HDF5 containers) are rejected with a
// descriptive error rather than misparsed.
package netcdf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/angus-g/cosima-cookbook/internal/dataset"
)

// DriverName is the name this driver registers under.
const DriverName = "netcdf"

func init() {
	dataset.Register(DriverName, dataset.OpenerFunc(Open))
}

const (
	versionClassic = 1 // 32-bit offsets
	version64      = 2 // 64-bit offsets

	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C

	// numrecs sentinel for streaming files
	streamingRecords = 0xFFFFFFFF
)

// netCDF external types
const (
	ncByte   = 1
	ncChar   = 2
	ncShort  = 3
	ncInt    = 4
	ncFloat  = 5
	ncDouble = 6
)

var typeSize = map[int32]int{
	ncByte:   1,
	ncChar:   1,
	ncShort:  2,
	ncInt:    4,
	ncFloat:  4,
	ncDouble: 8,
}

var hdf5Magic = []byte{0x89, 'H', 'D', 'F'}

// File is an open classic-format netCDF file.
type File struct {
	f       *os.File
	version byte
	numrecs int

	dims      []dataset.Dimension
	recordDim int // index into dims, -1 if none

	vars   []*variable
	byName map[string]*variable
}

// Open opens path as a classic-format netCDF file.
func Open(path string) (dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	nf, err := parse(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nf, nil
}

func parse(f *os.File) (*File, error) {
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) == string(hdf5Magic) {
		return nil, fmt.Errorf("netCDF-4 (HDF5) format is not supported by the %s driver", DriverName)
	}
	if string(magic[:3]) != "CDF" {
		return nil, fmt.Errorf("not a netCDF classic file")
	}
	version := magic[3]
	if version != versionClassic && version != version64 {
		return nil, fmt.Errorf("unsupported netCDF classic version %d", version)
	}

	nf := &File{
		f:         f,
		version:   version,
		recordDim: -1,
		byName:    make(map[string]*variable),
	}
	r := &reader{r: f}

	if numrecs := r.uint32(); numrecs != streamingRecords {
		nf.numrecs = int(numrecs)
	}

	for i, n := 0, r.listHeader(tagDimension); i < n && r.err == nil; i++ {
		name := r.name()
		size := int(r.int32())
		dim := dataset.Dimension{Name: name, Len: size}
		if size == 0 {
			dim.Unlimited = true
			dim.Len = nf.numrecs
			nf.recordDim = i
		}
		nf.dims = append(nf.dims, dim)
	}

	// global attributes are not consumed by the engine; skip them
	r.attributes()

	for i, n := 0, r.listHeader(tagVariable); i < n && r.err == nil; i++ {
		v := &variable{file: nf, name: r.name()}
		ndims := int(r.int32())
		for d := 0; d < ndims && r.err == nil; d++ {
			id := r.int32()
			if r.err == nil && (id < 0 || int(id) >= len(nf.dims)) {
				r.err = fmt.Errorf("variable %s references dimension %d of %d",
					v.name, id, len(nf.dims))
			}
			v.dimids = append(v.dimids, id)
		}
		v.attrs = r.attributes()
		v.xtype = r.int32()
		v.vsize = int64(r.uint32())
		if version == version64 {
			v.begin = int64(r.uint64())
		} else {
			v.begin = int64(r.uint32())
		}
		if typeSize[v.xtype] == 0 {
			r.err = fmt.Errorf("variable %s has unknown type %d", v.name, v.xtype)
		}
		nf.vars = append(nf.vars, v)
		nf.byName[v.name] = v
	}

	if r.err != nil {
		return nil, fmt.Errorf("parse header: %w", r.err)
	}
	return nf, nil
}

// Variables implements dataset.Dataset.
func (nf *File) Variables() []dataset.Variable {
	out := make([]dataset.Variable, len(nf.vars))
	for i, v := range nf.vars {
		out[i] = v
	}
	return out
}

// Variable implements dataset.Dataset.
func (nf *File) Variable(name string) (dataset.Variable, bool) {
	v, ok := nf.byName[name]
	return v, ok
}

// Dimensions implements dataset.Dataset.
func (nf *File) Dimensions() []dataset.Dimension {
	return nf.dims
}

// RecordDimension implements dataset.Dataset.
func (nf *File) RecordDimension() (string, bool) {
	if nf.recordDim < 0 {
		return "", false
	}
	return nf.dims[nf.recordDim].Name, true
}

// Close implements dataset.Dataset.
func (nf *File) Close() error {
	return nf.f.Close()
}

type variable struct {
	file *File

	name   string
	attrs  map[string]string
	dimids []int32
	xtype  int32
	vsize  int64
	begin  int64
}

// Name implements dataset.Variable.
func (v *variable) Name() string { return v.name }

// Attr implements dataset.Variable.
func (v *variable) Attr(name string) (string, bool) {
	val, ok := v.attrs[name]
	return val, ok
}

// Dimensions implements dataset.Variable.
func (v *variable) Dimensions() []string {
	out := make([]string, len(v.dimids))
	for i, id := range v.dimids {
		out[i] = v.file.dims[id].Name
	}
	return out
}

// Shape implements dataset.Variable.
func (v *variable) Shape() []int {
	out := make([]int, len(v.dimids))
	for i, id := range v.dimids {
		out[i] = v.file.dims[id].Len
	}
	return out
}

// Chunking implements dataset.Variable. Classic-format variables are always
// contiguous.
func (v *variable) Chunking() []int { return nil }

// isRecord reports whether the variable's outermost dimension is the record
// dimension.
func (v *variable) isRecord() bool {
	return len(v.dimids) > 0 && int(v.dimids[0]) == v.file.recordDim
}

// perRecord returns the number of elements in one record slab (or all
// elements for a non-record variable).
func (v *variable) perRecord() int {
	n := 1
	start := 0
	if v.isRecord() {
		start = 1
	}
	for _, id := range v.dimids[start:] {
		n *= v.file.dims[id].Len
	}
	return n
}

// Values implements dataset.Variable.
func (v *variable) Values() ([]float64, error) {
	elem := typeSize[v.xtype]

	if !v.isRecord() {
		return v.readSlab(v.begin, v.perRecord())
	}

	// Record variables are interleaved record by record. The stride is the
	// sum of all record variables' padded slab sizes, except that a sole
	// record variable is stored unpadded.
	var stride, count int64
	for _, rv := range v.file.vars {
		if rv.isRecord() {
			stride += rv.vsize
			count++
		}
	}
	per := v.perRecord()
	if count == 1 {
		stride = int64(per * elem)
	}

	out := make([]float64, 0, per*v.file.numrecs)
	for r := 0; r < v.file.numrecs; r++ {
		slab, err := v.readSlab(v.begin+int64(r)*stride, per)
		if err != nil {
			return nil, err
		}
		out = append(out, slab...)
	}
	return out, nil
}

// readSlab reads n contiguous elements at the given file offset and widens
// them to float64.
func (v *variable) readSlab(offset int64, n int) ([]float64, error) {
	elem := typeSize[v.xtype]
	buf := make([]byte, n*elem)
	if _, err := v.file.f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", v.name, err)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := buf[i*elem:]
		switch v.xtype {
		case ncByte, ncChar:
			out[i] = float64(int8(b[0]))
		case ncShort:
			out[i] = float64(int16(binary.BigEndian.Uint16(b)))
		case ncInt:
			out[i] = float64(int32(binary.BigEndian.Uint32(b)))
		case ncFloat:
			out[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case ncDouble:
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
	}
	return out, nil
}

// reader decodes the big-endian header, latching the first error.
type reader struct {
	r   io.Reader
	err error
}

func (r *reader) uint32() uint32 {
	var v uint32
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, &v)
	}
	return v
}

func (r *reader) int32() int32 { return int32(r.uint32()) }

func (r *reader) uint64() uint64 {
	var v uint64
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, &v)
	}
	return v
}

// bytes reads n bytes plus padding to the next 4-byte boundary.
func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 {
		return nil
	}
	padded := (n + 3) &^ 3
	buf := make([]byte, padded)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return nil
	}
	return buf[:n]
}

// name reads a length-prefixed, padded name.
func (r *reader) name() string {
	n := int(r.int32())
	return string(r.bytes(n))
}

// listHeader reads a (tag, count) pair; an absent list is encoded as two
// zero words.
func (r *reader) listHeader(wantTag int32) int {
	tag := r.int32()
	count := int(r.int32())
	if r.err != nil {
		return 0
	}
	if tag == 0 && count == 0 {
		return 0
	}
	if tag != wantTag {
		r.err = fmt.Errorf("malformed header: expected tag %#x, got %#x", wantTag, tag)
		return 0
	}
	return count
}

// attributes reads an attribute list, keeping character attributes as
// strings. Numeric attributes are skipped: the engine only consults
// string-valued metadata (units, calendar, long_name, bounds, ...).
func (r *reader) attributes() map[string]string {
	attrs := make(map[string]string)
	for i, n := 0, r.listHeader(tagAttribute); i < n && r.err == nil; i++ {
		name := r.name()
		xtype := r.int32()
		nelems := int(r.int32())
		size := typeSize[xtype]
		if size == 0 {
			r.err = fmt.Errorf("attribute %s has unknown type %d", name, xtype)
			return attrs
		}
		raw := r.bytes(nelems * size)
		if xtype == ncChar {
			attrs[name] = string(raw)
		}
	}
	return attrs
}
