package tensor

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMonitorDeniesOverLimit(t *testing.T) {
	m := NewMemoryMonitor(1024)
	_, err := m.TryAllocate(2048)
	assert.Error(t, err)
	assert.True(t, m.CanAllocate(1024))
	assert.False(t, m.CanAllocate(2048))
}

func TestMemoryMonitorReleaseFreesSpace(t *testing.T) {
	m := NewMemoryMonitor(100)
	release, err := m.TryAllocate(100)
	require.NoError(t, err)
	assert.False(t, m.CanAllocate(1))
	release()
	assert.True(t, m.CanAllocate(100))
}

func TestMemoryMonitorStreamingCap(t *testing.T) {
	// Spec §8 seed test 4: limit 50 MiB, n>50MiB denied, n<=1MiB granted.
	const mib = 1024 * 1024
	m := NewMemoryMonitor(50 * mib)

	_, err := m.TryAllocate(51 * mib)
	assert.Error(t, err)

	release, err := m.TryAllocate(mib)
	require.NoError(t, err)
	release()
}

func TestDecodeF16Basics(t *testing.T) {
	// 1.0 in IEEE754 half precision is 0x3C00.
	assert.InDelta(t, float32(1.0), decodeF16(0x3C00), 1e-6)
	// -2.0 is 0xC000.
	assert.InDelta(t, float32(-2.0), decodeF16(0xC000), 1e-6)
	// 0.0 is 0x0000.
	assert.Equal(t, float32(0.0), decodeF16(0x0000))
}

func TestDecodeQ4BlockBitExact(t *testing.T) {
	block := make([]byte, q4BlockSize)
	block[0] = 0x00
	block[1] = 0x3C // scale = 1.0 as f16
	// nibble 0 = 8 (low of byte2) -> output 0; nibble 1 = 9 (high) -> output 1
	block[2] = 0x98 // low=8 high=9
	for i := 3; i < 18; i++ {
		block[i] = 0x88 // low=8 high=8 -> both zero
	}

	out := make([]float32, q4OutputLen)
	require.NoError(t, DecodeBlock(Q4, block, out))
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(1), out[1])
	for i := 2; i < q4OutputLen; i++ {
		assert.Equal(t, float32(0), out[i])
	}
}

func TestDecodeQ4WrongSizeErrors(t *testing.T) {
	out := make([]float32, q4OutputLen)
	err := DecodeBlock(Q4, make([]byte, 10), out)
	assert.Error(t, err)
}

func TestDecodeQ6KProducesFiniteOutput(t *testing.T) {
	block := make([]byte, q6kBlockSize)
	block[0], block[1] = 0x00, 0x3C // main scale 1.0
	for i := 2; i < 14; i++ {
		block[i] = 1 // sub-scale 1
	}
	out := make([]float32, q6kOutputLen)
	require.NoError(t, DecodeBlock(Q6K, block, out))
	for _, v := range out {
		assert.False(t, isNaNOrInf(v))
	}
}

func isNaNOrInf(f float32) bool {
	return f != f || f > 3.4e38 || f < -3.4e38
}

func TestCursorStreamsUnderBudget(t *testing.T) {
	const numBlocks = 1000
	buf := make([]byte, numBlocks*q4BlockSize)
	for b := 0; b < numBlocks; b++ {
		off := b * q4BlockSize
		buf[off], buf[off+1] = 0x00, 0x3C // scale 1.0
		for i := 2; i < q4BlockSize; i++ {
			buf[off+i] = 0x99 // nibble 9 -> +1
		}
	}

	monitor := NewMemoryMonitor(MaxWorkingMemory)
	cur, err := NewCursor(bytes.NewReader(buf), Descriptor{Quantization: Q4, Offset: 0, NumBlocks: numBlocks}, monitor)
	require.NoError(t, err)

	total := 0
	for {
		w, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, f := range w.Floats {
			assert.Equal(t, float32(1), f)
		}
		total += len(w.Floats)
		w.Release()
		assert.LessOrEqual(t, monitor.Current(), int64(MaxWorkingMemory))
	}
	assert.Equal(t, numBlocks*q4OutputLen, total)
}

func TestCursorTruncatedFile(t *testing.T) {
	monitor := NewMemoryMonitor(MaxWorkingMemory)
	buf := make([]byte, q4BlockSize-1) // short by one byte
	cur, err := NewCursor(bytes.NewReader(buf), Descriptor{Quantization: Q4, Offset: 0, NumBlocks: 1}, monitor)
	require.NoError(t, err)
	_, err = cur.Next()
	assert.Error(t, err)
}
