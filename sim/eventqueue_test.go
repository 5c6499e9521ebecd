package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("EventQueue", func() {
	var (
		mockCtrl *gomock.Controller
		queue    *EventQueue
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewEventQueue()
	})

	event := func(t VTime, secondary bool) *MockEvent {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(t).AnyTimes()
		evt.EXPECT().IsSecondary().Return(secondary).AnyTimes()

		return evt
	}

	It("should be empty at first", func() {
		Expect(queue.Len()).To(Equal(0))
		Expect(queue.Peek()).To(BeNil())
		Expect(queue.Pop()).To(BeNil())
	})

	It("should pop in time order", func() {
		for i := 0; i < 100; i++ {
			queue.Push(event(VTime(rand.Float64()*1e3), rand.Intn(2) == 0))
		}

		last := VTime(-1)
		for queue.Len() > 0 {
			evt := queue.Pop()
			Expect(evt.Time()).To(BeNumerically(">=", last))
			last = evt.Time()
		}
	})

	It("should keep the arrival order of same-time events", func() {
		var events []*MockEvent
		for i := 0; i < 20; i++ {
			evt := event(7, false)
			events = append(events, evt)
			queue.Push(evt)
		}

		for _, expected := range events {
			Expect(queue.Peek()).To(BeIdenticalTo(expected))
			Expect(queue.Pop()).To(BeIdenticalTo(expected))
		}
	})

	It("should put secondary events after the primary ones of the same time", func() {
		late := event(3, false)
		secondary := event(2, true)
		primary := event(2, false)

		queue.Push(late)
		queue.Push(secondary)
		queue.Push(primary)

		Expect(queue.Pop()).To(BeIdenticalTo(primary))
		Expect(queue.Pop()).To(BeIdenticalTo(secondary))
		Expect(queue.Pop()).To(BeIdenticalTo(late))
	})
})
