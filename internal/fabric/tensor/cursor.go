package tensor

import (
	"errors"
	"fmt"
	"io"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Magic is the expected leading 4 bytes of a tensor descriptor blob. A
// loader embedding this package in a larger container format validates it
// before constructing a Descriptor directly.
var Magic = [4]byte{'G', 'G', 'U', 'F'}

// Descriptor locates one tensor's quantized blocks inside a backing reader.
type Descriptor struct {
	Quantization Quantization
	Offset       int64 // byte offset of the first block
	NumBlocks    int64
}

// Window is one decoded batch of floats, holding at most DecodeSize
// elements. Release must be called (defer) once the caller is done reading
// Floats, returning the buffer's reservation to the MemoryMonitor.
type Window struct {
	Floats  []float32
	Release func()
}

// Cursor is a lazy, finite, non-restartable sequence of decoded float
// windows. It never holds more than MaxWorkingMemory live bytes: one
// ChunkSize read buffer plus one DecodeSize decode buffer at a time.
type Cursor struct {
	r          io.ReaderAt
	desc       Descriptor
	monitor    *MemoryMonitor
	blockSize  int
	outputLen  int
	nextBlock  int64
	readOffset int64
	exhausted  bool
}

// NewCursor opens a streaming cursor over desc, backed by r. monitor guards
// every transient allocation the cursor makes.
func NewCursor(r io.ReaderAt, desc Descriptor, monitor *MemoryMonitor) (*Cursor, error) {
	blockSize, err := BlockSize(desc.Quantization)
	if err != nil {
		return nil, err
	}
	outputLen, err := OutputLen(desc.Quantization)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		r:          r,
		desc:       desc,
		monitor:    monitor,
		blockSize:  blockSize,
		outputLen:  outputLen,
		readOffset: desc.Offset,
	}, nil
}

// Next yields the next window of decoded floats, or (nil, io.EOF) once the
// descriptor's blocks are exhausted. Restart requires a fresh NewCursor.
func (c *Cursor) Next() (*Window, error) {
	if c.exhausted {
		return nil, io.EOF
	}
	if c.nextBlock >= c.desc.NumBlocks {
		c.exhausted = true
		return nil, io.EOF
	}

	blocksPerWindow := DecodeSize / c.outputLen
	if blocksPerWindow < 1 {
		blocksPerWindow = 1
	}
	remaining := c.desc.NumBlocks - c.nextBlock
	if int64(blocksPerWindow) > remaining {
		blocksPerWindow = int(remaining)
	}

	readBytes := int64(blocksPerWindow) * int64(c.blockSize)
	if readBytes > ChunkSize {
		blocksPerWindow = ChunkSize / c.blockSize
		readBytes = int64(blocksPerWindow) * int64(c.blockSize)
	}

	releaseRead, err := c.monitor.TryAllocate(readBytes)
	if err != nil {
		return nil, err
	}
	defer releaseRead()

	raw := make([]byte, readBytes)
	n, err := c.r.ReadAt(raw, c.readOffset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fabricerr.Wrap(fabricerr.Tensor, "tensor stream read failed", err)
	}
	if int64(n) < readBytes {
		return nil, fabricerr.New(fabricerr.Tensor, fmt.Sprintf("truncated tensor file: expected %d bytes, got %d", readBytes, n))
	}

	outFloats := blocksPerWindow * c.outputLen
	releaseDecode, err := c.monitor.TryAllocate(int64(outFloats) * 4)
	if err != nil {
		return nil, err
	}

	decoded := make([]float32, outFloats)
	for b := 0; b < blocksPerWindow; b++ {
		block := raw[b*c.blockSize : (b+1)*c.blockSize]
		if err := DecodeBlock(c.desc.Quantization, block, decoded[b*c.outputLen:(b+1)*c.outputLen]); err != nil {
			releaseDecode()
			return nil, err
		}
	}

	c.readOffset += readBytes
	c.nextBlock += int64(blocksPerWindow)

	return &Window{Floats: decoded, Release: releaseDecode}, nil
}

// BadMagicNumber reports whether header, the first 4 bytes of a tensor
// container, doesn't match the expected magic.
func BadMagicNumber(header [4]byte) bool {
	return header != Magic
}
