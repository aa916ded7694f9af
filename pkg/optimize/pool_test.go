package optimize

import "testing"

func TestBytePool_HandsOutFullSizeBuffers(t *testing.T) {
	pool := NewBytePool(1500)

	buf := pool.Get()
	if len(buf) != 1500 {
		t.Fatalf("expected buffer of 1500 bytes, got %d", len(buf))
	}

	pool.Put(buf)
	again := pool.Get()
	if len(again) != 1500 {
		t.Fatalf("expected recycled buffer of 1500 bytes, got %d", len(again))
	}
}

func TestBytePool_DropsUndersizedBuffers(t *testing.T) {
	pool := NewBytePool(1500)

	pool.Put(make([]byte, 10))
	buf := pool.Get()
	if len(buf) != 1500 {
		t.Fatalf("undersized buffer leaked back out: got %d bytes", len(buf))
	}
}

func TestBytePool_RestoresLengthAfterTruncatedUse(t *testing.T) {
	pool := NewBytePool(1500)

	buf := pool.Get()
	pool.Put(buf[:42])

	again := pool.Get()
	if len(again) != 1500 {
		t.Fatalf("expected full-length buffer after truncated put, got %d", len(again))
	}
}

func BenchmarkBytePool(b *testing.B) {
	pool := NewBytePool(1500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := pool.Get()
		buf[0] = byte(i)
		pool.Put(buf)
	}
}
