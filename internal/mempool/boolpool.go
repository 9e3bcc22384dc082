// Package mempool pools scratch buffers used while converting symbol matrices.
package mempool

import (
	"sync"
)

var boolPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 1024 modules.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func boolPool(cls int) *sync.Pool {
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// GetBool retrieves a zeroed []bool buffer of length n from the pool.
// The caller must return it via PutBool when done.
func GetBool(n int) []bool {
	if n <= 0 {
		return []bool{}
	}
	cls := sizeClass(n)
	p := boolPool(cls)
	if p == nil {
		return make([]bool, n)
	}
	buf, ok := p.Get().([]bool)
	if !ok || cap(buf) < cls {
		buf = make([]bool, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) {
	if cap(buf) == 0 {
		return
	}
	// Capacity below a class boundary would hand out short buffers later.
	if cap(buf)%1024 != 0 {
		return
	}
	p := boolPool(cap(buf))
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck // slices are pooled by value
}
