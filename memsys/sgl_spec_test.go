package memsys

import (
	"github.com/ecsnet/replicore/codec"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("SGL", func() {
	var sgl *SGL

	BeforeEach(func() {
		sgl = NewSGL(64)
	})

	It("returns the range it just wrote", func() {
		r := sgl.WriteBytes([]byte("hello"))
		Expect(sgl.GetRange(r)).To(Equal([]byte("hello")))
		Expect(r.Len()).To(Equal(5))
	})

	It("round-trips an entity id without copying", func() {
		r := sgl.WriteEntity(codec.EntityID(424242))
		got, n, err := ReadEntityAt(sgl.Bytes(), r.Start)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(codec.EntityID(424242)))
		Expect(n).To(Equal(r.Len()))
	})

	It("coalesces two adjacent ranges", func() {
		a := sgl.WriteBytes([]byte("ab"))
		b := sgl.WriteBytes([]byte("cd"))
		merged, ok := Coalesce(a, b)
		Expect(ok).To(BeTrue())
		Expect(sgl.GetRange(merged)).To(Equal([]byte("abcd")))
	})

	It("refuses to coalesce non-adjacent ranges", func() {
		a := sgl.WriteBytes([]byte("ab"))
		sgl.WriteBytes([]byte("--")) // gap
		c := Range{Start: a.End + 2, End: a.End + 4}
		_, ok := Coalesce(a, c)
		Expect(ok).To(BeFalse())
	})

	It("invalidates prior ranges' backing data after Clear", func() {
		sgl.WriteBytes([]byte("stale"))
		sgl.Clear()
		Expect(sgl.Len()).To(Equal(0))
		r := sgl.WriteBytes([]byte("fresh"))
		Expect(sgl.GetRange(r)).To(Equal([]byte("fresh")))
	})

	It("panics reading a range beyond the written length", func() {
		sgl.WriteBytes([]byte("x"))
		Expect(func() {
			sgl.GetRange(Range{Start: 0, End: 100})
		}).To(Panic())
	})
})

var _ = Describe("AllocSGL/FreeSGL", func() {
	It("hands back a cleared buffer on reuse", func() {
		s1 := AllocSGL()
		s1.WriteBytes([]byte("leftover"))
		FreeSGL(s1)

		s2 := AllocSGL()
		Expect(s2.Len()).To(Equal(0))
		FreeSGL(s2)
	})
})
