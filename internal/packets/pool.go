package packets

import "sync"

// bufferPool recycles the scratch buffers used to encode outgoing packets.
// A fixed 4KB size covers the overwhelming majority of control packets and
// small publishes; larger payloads simply allocate their own buffer.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	},
}

// GetBuffer returns a zero-length buffer from the pool, ready to be grown
// with append. Callers that know they need more than 4KB should just
// allocate directly instead of calling this.
func GetBuffer() *[]byte {
	bufPtr := bufferPool.Get().(*[]byte)
	*bufPtr = (*bufPtr)[:0]
	return bufPtr
}

// PutBuffer returns a buffer to the pool. Buffers that grew past the pooled
// size are dropped rather than retained, to avoid pinning large allocations.
func PutBuffer(bufPtr *[]byte) {
	if cap(*bufPtr) > 4096 {
		return
	}
	bufferPool.Put(bufPtr)
}
