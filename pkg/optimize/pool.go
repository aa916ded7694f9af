package optimize

import "sync"

// BytePool recycles fixed-size byte buffers. The media read loops pull
// one buffer per inbound RTP packet, so without pooling every packet
// costs an allocation.
type BytePool struct {
	pool sync.Pool
	size int
}

func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Undersized buffers are dropped so a
// later Get never hands out less than the pool size.
func (p *BytePool) Put(b []byte) {
	if cap(b) >= p.size {
		p.pool.Put(b[:p.size])
	}
}
