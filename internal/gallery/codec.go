package gallery

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDimensionMismatch is returned when a stored encoding does not decode to the expected length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DecodeEmbedding decodes a base64 encoding stored by the enrollment tooling.
// The payload is a raw little-endian float64 array; float32 arrays of the
// same dimension are accepted as well.
func DecodeEmbedding(encoded string, dim int) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}

	switch len(raw) {
	case 8 * dim:
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
		return vec, nil
	case 4 * dim:
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("%w: %d bytes for dimension %d", ErrDimensionMismatch, len(raw), dim)
	}
}

// EncodeEmbedding encodes an embedding as base64 little-endian float64, the
// format written by enrollment.
func EncodeEmbedding(vec []float32) string {
	raw := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(float64(v)))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
