package packed_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sim-x/simx-sub002/packed"
)

type lpID int32

type point struct {
	x, y float64
	name string
}

func (p *point) Pack(b *packed.Buffer) {
	b.AddFloat64(p.x)
	b.AddFloat64(p.y)
	b.AddString(p.name)
}

func (p *point) Unpack(b *packed.Buffer) bool {
	return b.GetFloat64(&p.x) && b.GetFloat64(&p.y) && b.GetString(&p.name)
}

var _ = Describe("Containers", func() {
	var b *packed.Buffer

	BeforeEach(func() {
		b = packed.New()
	})

	It("should store named scalar types by their underlying kind", func() {
		packed.Put(b, lpID(3))

		var id lpID
		Expect(packed.Take(b, &id)).To(BeTrue())
		Expect(id).To(Equal(lpID(3)))
	})

	It("should read back slices", func() {
		packed.PutSlice(b, []string{"a", "bb", ""})
		packed.PutSlice(b, []int32{})

		var s []string
		var e []int32
		Expect(packed.TakeSlice(b, &s)).To(BeTrue())
		Expect(packed.TakeSlice(b, &e)).To(BeTrue())
		Expect(s).To(Equal([]string{"a", "bb", ""}))
		Expect(e).To(BeEmpty())
	})

	It("should read back maps and sets", func() {
		packed.PutMap(b, map[string]float64{"x": 1, "y": 2})
		packed.PutSet(b, map[lpID]struct{}{1: {}, 5: {}})

		var m map[string]float64
		var set map[lpID]struct{}
		Expect(packed.TakeMap(b, &m)).To(BeTrue())
		Expect(packed.TakeSet(b, &set)).To(BeTrue())
		Expect(m).To(Equal(map[string]float64{"x": 1, "y": 2}))
		Expect(set).To(HaveLen(2))
		Expect(set).To(HaveKey(lpID(5)))
	})

	It("should read back pairs", func() {
		packed.PutPair(b, "key", uint16(9))

		var k string
		var v uint16
		Expect(packed.TakePair(b, &k, &v)).To(BeTrue())
		Expect(k).To(Equal("key"))
		Expect(v).To(Equal(uint16(9)))
	})

	It("should read back packables", func() {
		packed.PutPackables(b, []*point{{1, 2, "p"}, {3, 4, "q"}})

		var pts []*point
		Expect(packed.TakePackables(b, &pts)).To(BeTrue())
		Expect(pts).To(HaveLen(2))
		Expect(*pts[1]).To(Equal(point{3, 4, "q"}))
	})

	It("should leave the cursor in place when a container is truncated", func() {
		packed.PutSlice(b, []int64{1, 2, 3})
		truncated := packed.Wrap(append([]byte(nil), b.Bytes()[:b.Len()-3]...))

		var s []int64
		Expect(packed.TakeSlice(truncated, &s)).To(BeFalse())
		Expect(truncated.ReadOffset()).To(Equal(0))
		Expect(s).To(BeNil())
	})

	It("should refuse containers longer than the maximum", func() {
		b = packed.New(packed.WithMaxLength(2))
		packed.PutSlice(b, []int8{1, 2, 3})

		var s []int8
		Expect(packed.TakeSlice(b, &s)).To(BeFalse())
	})

	It("should refuse a container of the wrong element type", func() {
		packed.PutSlice(b, []int32{1})

		var s []string
		Expect(packed.TakeSlice(b, &s)).To(BeFalse())
		Expect(b.ReadOffset()).To(Equal(0))
	})
})
