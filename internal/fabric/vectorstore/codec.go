package vectorstore

import (
	"encoding/binary"
	"math"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// deserializeFloat32 reverses sqlite-vec's SerializeFloat32 format: a flat
// little-endian packed float32 array with no header, the raw bytes BLOB
// storage gives back from the chunks_vec virtual table.
func deserializeFloat32(raw []byte, dimensions int) ([]float32, error) {
	if len(raw) != dimensions*4 {
		return nil, fabricerr.New(fabricerr.Tensor, "stored embedding has unexpected byte length")
	}
	out := make([]float32, dimensions)
	for i := 0; i < dimensions; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
