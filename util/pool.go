package util

import "sync"

// ReadChunkSize is the size of a single non-blocking read attempt.
const ReadChunkSize = 64 * 1024

// BufPool provides reusable read buffers, reducing GC pressure on the
// per-tick read loop.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadChunkSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
