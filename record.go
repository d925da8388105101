package seqio

// DType identifies the element type of a feature value.
type DType string

// Data types that can appear in a transformed record.
const (
	DTypeString  DType = "string"
	DTypeInt32   DType = "int32"
	DTypeInt64   DType = "int64"
	DTypeFloat32 DType = "float32"
)

// Value is one typed feature value inside a Record. The set of
// implementations is closed: Bytes, Int32s, Int64s and Float32s.
type Value interface {
	// DType returns the element type of the value.
	DType() DType

	// Rank returns the number of array dimensions (0 for scalars).
	Rank() int

	sealed()
}

// Bytes is a scalar string/bytes value.
type Bytes []byte

// Int32s is a one-dimensional int32 array value.
type Int32s []int32

// Int64s is a one-dimensional int64 array value.
type Int64s []int64

// Float32s is a one-dimensional float32 array value.
type Float32s []float32

func (Bytes) DType() DType    { return DTypeString }
func (Int32s) DType() DType   { return DTypeInt32 }
func (Int64s) DType() DType   { return DTypeInt64 }
func (Float32s) DType() DType { return DTypeFloat32 }

func (Bytes) Rank() int    { return 0 }
func (Int32s) Rank() int   { return 1 }
func (Int64s) Rank() int   { return 1 }
func (Float32s) Rank() int { return 1 }

func (Bytes) sealed()    {}
func (Int32s) sealed()   {}
func (Int64s) sealed()   {}
func (Float32s) sealed() {}

// Record is one transformed example: a mapping from feature name to a
// typed value. Records have no identity beyond their position in the
// output stream, and that position is not preserved across the
// reshuffle boundary.
type Record map[string]Value

// Feature describes one declared output feature of a task.
type Feature struct {
	DType DType // Element type the transform emits for this feature
}

// tokenCount returns the number of elements greater than 1 in an
// integer-array value, a proxy for non-padding token count. The second
// return is false for non-integer values, which do not contribute to
// token statistics.
func tokenCount(v Value) (int64, bool) {
	var n int64
	switch vals := v.(type) {
	case Int32s:
		for _, x := range vals {
			if x > 1 {
				n++
			}
		}
	case Int64s:
		for _, x := range vals {
			if x > 1 {
				n++
			}
		}
	default:
		return 0, false
	}
	return n, true
}
