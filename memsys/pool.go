package memsys

import "sync"

// DefaultSGLCapacity is the initial backing-array size for a pooled SGL;
// a tick's worth of per-client replication data for a modest entity count
// comfortably fits without the first append triggering a grow.
const DefaultSGLCapacity = 4 << 10 // 4KiB

var sglPool sync.Pool

// AllocSGL returns a clean SGL, reusing a pooled instance when available.
// Mirrors cluster.AllocNodes/FreeNodes: a sync.Pool of reusable buffers
// instead of allocating fresh per tick per client.
func AllocSGL() *SGL {
	if v := sglPool.Get(); v != nil {
		sgl := v.(*SGL)
		sgl.Clear()
		return sgl
	}
	return NewSGL(DefaultSGLCapacity)
}

// FreeSGL returns sgl to the pool. The caller must not retain any Range
// borrowed from it afterward.
func FreeSGL(sgl *SGL) {
	sgl.Clear()
	sglPool.Put(sgl)
}
