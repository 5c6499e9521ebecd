package messenger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sim-x/simx-sub002/packed"
)

var _ = Describe("ControlInfo", func() {
	It("should read back a message with a body", func() {
		ci := &ControlInfo{
			SrcLP:       1,
			DestLP:      3,
			DestEntity:  "router-7",
			DestService: 12,
			SentTime:    4.5,
			Delay:       0.25,
			Info:        &noteInfo{Text: "reset", Values: []int32{1, 2}},
		}

		b := packed.New()
		ci.Pack(b)

		out := &ControlInfo{}
		Expect(out.Unpack(b)).To(BeTrue())
		Expect(out).To(Equal(ci))
		Expect(b.Remaining()).To(Equal(0))
	})

	It("should read back a message without a body", func() {
		ci := &ControlInfo{SrcLP: 0, DestLP: 1, DestEntity: "host"}

		b := packed.New()
		ci.Pack(b)

		out := &ControlInfo{Info: &noteInfo{}}
		Expect(out.Unpack(b)).To(BeTrue())
		Expect(out.Info).To(BeNil())
		Expect(out.DestEntity).To(Equal("host"))
	})

	It("should fail on a truncated message", func() {
		ci := &ControlInfo{DestEntity: "host", Info: &noteInfo{Text: "x"}}

		b := packed.New()
		ci.Pack(b)

		w := packed.Wrap(b.Bytes()[:b.Len()-3])
		Expect((&ControlInfo{}).Unpack(w)).To(BeFalse())
	})

	It("should fail on an unknown body type", func() {
		b := packed.New()
		packed.Put(b, int32(0))
		packed.Put(b, int32(1))
		b.AddString("host")
		b.AddInt32(0)
		b.AddFloat64(0)
		b.AddFloat64(0)
		b.AddString("nowhere.Unknown")

		Expect((&ControlInfo{}).Unpack(b)).To(BeFalse())
	})
})

var _ = Describe("Info registry", func() {
	It("should refuse registering a type twice", func() {
		Expect(RegisterInfo(&noteInfo{})).To(HaveOccurred())
	})

	It("should create registered types", func() {
		info, err := CreateInfo(ClassType(&noteInfo{}))

		Expect(err).NotTo(HaveOccurred())
		Expect(info).To(BeAssignableToTypeOf(&noteInfo{}))
	})

	It("should name types by package path", func() {
		Expect(ClassType(&noteInfo{})).To(
			Equal("github.com/sim-x/simx-sub002/messenger.noteInfo"))
	})
})
