package comm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sim-x/simx-sub002/comm"
)

func identity(r int) int { return r }

var _ = Describe("Mailbox", func() {
	var mb *comm.Mailbox

	BeforeEach(func() {
		mb = comm.NewMailbox()
	})

	It("should complete a posted receive on arrival", func() {
		buf := make([]byte, 8)
		req := mb.Post(0, comm.AnySource, 1, buf, identity)

		done, _, _ := req.Test()
		Expect(done).To(BeFalse())

		matched := false
		mb.Arrive(&comm.Envelope{Source: 3, Tag: 1, Data: []byte("hi"),
			OnMatch: func() { matched = true }})

		done, status, err := req.Test()
		Expect(done).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(comm.Status{Source: 3, Tag: 1, Count: 2}))
		Expect(buf[:2]).To(Equal([]byte("hi")))
		Expect(matched).To(BeTrue())
	})

	It("should match queued envelopes in arrival order", func() {
		mb.Arrive(&comm.Envelope{Source: 1, Tag: 1, Data: []byte("a")})
		mb.Arrive(&comm.Envelope{Source: 1, Tag: 1, Data: []byte("b")})

		buf := make([]byte, 1)
		req := mb.Post(0, 1, 1, buf, identity)
		done, _, _ := req.Test()

		Expect(done).To(BeTrue())
		Expect(string(buf)).To(Equal("a"))
		Expect(mb.Queued()).To(Equal(1))
	})

	It("should only match the requested source, tag and context", func() {
		mb.Arrive(&comm.Envelope{Source: 1, Tag: 2, Data: []byte("x")})
		mb.Arrive(&comm.Envelope{Context: 7, Source: 1, Tag: 1, Data: []byte("y")})
		mb.Arrive(&comm.Envelope{Source: 2, Tag: 1, Data: []byte("z")})

		req := mb.Post(0, 1, 1, make([]byte, 1), identity)
		done, _, _ := req.Test()
		Expect(done).To(BeFalse())

		anyTag := mb.Post(0, 1, comm.AnyTag, make([]byte, 1), identity)
		done, status, _ := anyTag.Test()
		Expect(done).To(BeTrue())
		Expect(status.Tag).To(Equal(2))
	})

	It("should report truncation", func() {
		req := mb.Post(0, comm.AnySource, comm.AnyTag, make([]byte, 2), identity)
		mb.Arrive(&comm.Envelope{Data: []byte("toolong")})

		done, status, err := req.Test()
		Expect(done).To(BeTrue())
		Expect(status.Count).To(Equal(2))

		var te *comm.TransportError
		Expect(errors.As(err, &te)).To(BeTrue())
		Expect(te.Op).To(Equal("recv"))
	})

	It("should fail receives when broken", func() {
		req := mb.Post(0, comm.AnySource, comm.AnyTag, nil, identity)
		mb.Fail(&comm.TransportError{Op: "recv", Msg: "gone"})

		done, _, err := req.Test()
		Expect(done).To(BeTrue())
		Expect(err).To(HaveOccurred())

		later := mb.Post(0, comm.AnySource, comm.AnyTag, nil, identity)
		done, _, err = later.Test()
		Expect(done).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("gone")))
	})

	It("should not match cancelled receives", func() {
		req := mb.Post(0, comm.AnySource, comm.AnyTag, make([]byte, 1), identity)
		req.Cancel()

		mb.Arrive(&comm.Envelope{Data: []byte("a")})

		done, _, _ := req.Test()
		Expect(done).To(BeFalse())
		Expect(mb.Queued()).To(Equal(1))
	})
})

var _ = Describe("TransportError", func() {
	It("should wrap foreign errors once", func() {
		err := comm.Wrap("send", errors.New("reset"))
		Expect(err.Error()).To(Equal("(send) transport error: reset"))
		Expect(comm.Wrap("other", err)).To(BeIdenticalTo(err))
		Expect(comm.Wrap("send", nil)).To(BeNil())
	})
})
