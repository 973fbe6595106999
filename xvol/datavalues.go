/*
   This file handles the layout of voxel values, e.g., a uint8 or float32
   component, and the mapping between datatype codes and their wire names.
*/

package xvol

import "fmt"

// DataType is a unique ID for each type of voxel value, e.g., a uint8 or a float32.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

var typeBytes = map[DataType]int32{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// DataTypeBytes returns the # of bytes for a given data type.
// For example, T_uint16 is 2 bytes.
func DataTypeBytes(t DataType) int32 {
	return typeBytes[t]
}

func (t DataType) String() string {
	name, found := typeNames[t]
	if !found {
		return fmt.Sprintf("unknown datatype (%d)", uint8(t))
	}
	return name
}

// IsFloat returns true for the floating-point datatypes.
func (t DataType) IsFloat() bool {
	return t == T_float32 || t == T_float64
}

// IsSigned returns true for datatypes able to hold negative values.
func (t DataType) IsSigned() bool {
	switch t {
	case T_int8, T_int16, T_int32, T_int64, T_float32, T_float64:
		return true
	}
	return false
}

// DataTypeByName returns the DataType for a wire name like "float32".
func DataTypeByName(name string) (DataType, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, DomainErrorf("unknown datatype name %q", name)
}
