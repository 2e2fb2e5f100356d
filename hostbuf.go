package buffercmp

import (
	"github.com/gomlx/buffercmp/internal/fp8"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/gopjrt/pjrt"
	"github.com/x448/float16"
)

// BufferFromFloats encodes the values into the given element type and uploads
// them to the client's default device.
//
// The encodings saturate the way the target type does: values overflowing
// F8E5M2 become ±Inf, while ±Inf and values overflowing F8E4M3FN become NaN
// (the type has no Infinity). Int8 values are truncated toward zero and must
// be in range.
//
// This is how a test harness populates device buffers for CompareEqual without
// dealing with the reduced-precision encodings itself. For complex element
// types see BufferFromComplex.
func BufferFromFloats(client *pjrt.Client, dtype dtypes.DType, values []float32, dimensions ...int) (*pjrt.Buffer, error) {
	if client == nil {
		return nil, preconditionErrorf("BufferFromFloats requires a non-nil client")
	}
	switch dtype {
	case dtypes.Float32:
		return client.BufferFromHost().FromFlatDataWithDimensions(values, dimensions).Done()
	case dtypes.Float64:
		encoded := make([]float64, len(values))
		for i, v := range values {
			encoded[i] = float64(v)
		}
		return client.BufferFromHost().FromFlatDataWithDimensions(encoded, dimensions).Done()
	case dtypes.Float16:
		encoded := make([]float16.Float16, len(values))
		for i, v := range values {
			encoded[i] = float16.Fromfloat32(v)
		}
		return client.BufferFromHost().FromFlatDataWithDimensions(encoded, dimensions).Done()
	case dtypes.BFloat16:
		encoded := make([]bfloat16.BFloat16, len(values))
		for i, v := range values {
			encoded[i] = bfloat16.FromFloat32(v)
		}
		return client.BufferFromHost().FromFlatDataWithDimensions(encoded, dimensions).Done()
	case dtypes.F8E4M3FN:
		raw := make([]byte, len(values))
		for i, v := range values {
			raw[i] = byte(fp8.E4M3FNFromFloat32(v))
		}
		return client.BufferFromHost().FromRawData(raw, dtype, dimensions).Done()
	case dtypes.F8E5M2:
		raw := make([]byte, len(values))
		for i, v := range values {
			raw[i] = byte(fp8.E5M2FromFloat32(v))
		}
		return client.BufferFromHost().FromRawData(raw, dtype, dimensions).Done()
	case dtypes.Int8:
		encoded := make([]int8, len(values))
		for i, v := range values {
			encoded[i] = int8(v)
		}
		return client.BufferFromHost().FromFlatDataWithDimensions(encoded, dimensions).Done()
	}
	return nil, preconditionErrorf("BufferFromFloats does not support element type %s", dtype)
}

// BufferFromComplex encodes the values into the given complex element type
// (Complex64 or Complex128) and uploads them to the client's default device.
func BufferFromComplex(client *pjrt.Client, dtype dtypes.DType, values []complex128, dimensions ...int) (*pjrt.Buffer, error) {
	if client == nil {
		return nil, preconditionErrorf("BufferFromComplex requires a non-nil client")
	}
	switch dtype {
	case dtypes.Complex64:
		encoded := make([]complex64, len(values))
		for i, v := range values {
			encoded[i] = complex64(v)
		}
		return client.BufferFromHost().FromFlatDataWithDimensions(encoded, dimensions).Done()
	case dtypes.Complex128:
		return client.BufferFromHost().FromFlatDataWithDimensions(values, dimensions).Done()
	}
	return nil, preconditionErrorf("BufferFromComplex does not support element type %s", dtype)
}
