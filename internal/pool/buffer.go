// Package pool provides reusable copy buffers for streaming downloads.
package pool

import (
	"io"
	"sync"
)

const (
	// SmallBufferSize defines the size for small buffers (4KB)
	SmallBufferSize = 4 * 1024
	// MediumBufferSize defines the size for medium buffers (64KB)
	MediumBufferSize = 64 * 1024
	// LargeBufferSize defines the size for large buffers (1MB)
	LargeBufferSize = 1024 * 1024
)

// BufferPool manages reusable copy buffers of three sizes.
type BufferPool struct {
	small  *sync.Pool
	medium *sync.Pool
	large  *sync.Pool
}

func newTier(size int) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool with default sizes.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  newTier(SmallBufferSize),
		medium: newTier(MediumBufferSize),
		large:  newTier(LargeBufferSize),
	}
}

func (bp *BufferPool) tier(sizeHint int64) *sync.Pool {
	switch {
	case sizeHint > 0 && sizeHint <= SmallBufferSize:
		return bp.small
	case sizeHint > 0 && sizeHint <= LargeBufferSize:
		return bp.medium
	default:
		// unknown or large objects
		return bp.large
	}
}

// Get returns a full-length buffer suited to copying an object of sizeHint
// bytes. A non-positive hint selects the large tier. Return it with Put.
func (bp *BufferPool) Get(sizeHint int64) *[]byte {
	bufPtr, _ := bp.tier(sizeHint).Get().(*[]byte)
	*bufPtr = (*bufPtr)[:cap(*bufPtr)]
	return bufPtr
}

// Put returns a buffer to the tier matching its capacity. Buffers of other
// capacities are dropped.
func (bp *BufferPool) Put(bufPtr *[]byte) {
	if bufPtr == nil {
		return
	}
	switch cap(*bufPtr) {
	case SmallBufferSize:
		bp.small.Put(bufPtr)
	case MediumBufferSize:
		bp.medium.Put(bufPtr)
	case LargeBufferSize:
		bp.large.Put(bufPtr)
	}
}

// Copy copies src to dst through a pooled buffer.
func (bp *BufferPool) Copy(dst io.Writer, src io.Reader, sizeHint int64) (int64, error) {
	bufPtr := bp.Get(sizeHint)
	defer bp.Put(bufPtr)

	//nolint:wrapcheck // callers attach key context
	return io.CopyBuffer(dst, src, *bufPtr)
}
