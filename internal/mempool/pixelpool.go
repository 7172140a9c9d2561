package mempool

import (
	"sync"
)

// A simple sized pool for []uint8 pixel buffers to reduce allocations when
// decoding masks on hot paths (interactive edits decode on every commit).

var pixelPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 4096 to reduce churn.
func sizeClass(n int) int {
	if n <= 4096 {
		return 4096
	}
	const step = 4096
	r := (n + step - 1) / step
	return r * step
}

// GetPixels retrieves a zeroed []uint8 buffer of at least n elements from the
// pool. The returned slice has length n but may have larger capacity.
// The caller must return it via PutPixels when done.
func GetPixels(n int) []uint8 {
	cls := sizeClass(n)
	pAny, _ := pixelPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]uint8, n)
	}
	buf, ok := p.Get().([]uint8)
	if !ok || cap(buf) < cls {
		buf = make([]uint8, cls)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// PutPixels returns a buffer to the pool. It is safe to pass a nil slice.
func PutPixels(buf []uint8) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := pixelPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	if p, ok := pAny.(*sync.Pool); ok {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck // slice is pooled by size class
	}
}
