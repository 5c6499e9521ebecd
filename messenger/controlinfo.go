package messenger

import (
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/packed"
	"github.com/sim-x/simx-sub002/sim"
)

// ControlInfo is an out-of-band message addressed to a service of an entity
// hosted by an LP.
type ControlInfo struct {
	SrcLP       lp.LPID
	DestLP      lp.LPID
	DestEntity  string
	DestService int32
	SentTime    sim.VTime
	Delay       sim.VTime
	Info        Info
}

// Pack writes the message. The Info body is preceded by its class type, or by
// an empty string if there is no body.
func (c *ControlInfo) Pack(b *packed.Buffer) {
	packed.Put(b, c.SrcLP)
	packed.Put(b, c.DestLP)
	b.AddString(c.DestEntity)
	b.AddInt32(c.DestService)
	packed.Put(b, c.SentTime)
	packed.Put(b, c.Delay)

	if c.Info == nil {
		b.AddString("")
		return
	}

	b.AddString(ClassType(c.Info))
	c.Info.Pack(b)
}

// Unpack reads a message written by Pack. It fails if the body's class type
// is not registered.
func (c *ControlInfo) Unpack(b *packed.Buffer) bool {
	var classType string

	ok := packed.Take(b, &c.SrcLP) &&
		packed.Take(b, &c.DestLP) &&
		b.GetString(&c.DestEntity) &&
		b.GetInt32(&c.DestService) &&
		packed.Take(b, &c.SentTime) &&
		packed.Take(b, &c.Delay) &&
		b.GetString(&classType)
	if !ok {
		return false
	}

	if classType == "" {
		c.Info = nil
		return true
	}

	info, err := CreateInfo(classType)
	if err != nil {
		return false
	}

	if !info.Unpack(b) {
		return false
	}

	c.Info = info

	return true
}
