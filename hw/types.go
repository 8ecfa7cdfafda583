package hw

import (
	"strconv"
	"strings"
)

// Type is a hardware value type.
//
// Types are immutable values. Two types are interchangeable when Equal
// reports true; pointer identity is never meaningful.
type Type interface {
	String() string
	Equal(other Type) bool
	isType()
}

// IntType is a signless integer of a fixed bit width.
type IntType struct {
	Width int
}

func (IntType) isType() {}

func (t IntType) String() string {
	return "i" + strconv.Itoa(t.Width)
}

// Equal implements Type.
func (t IntType) Equal(other Type) bool {
	o, ok := other.(IntType)
	return ok && o.Width == t.Width
}

// ChannelType is a flow-controlled channel carrying values of Inner.
type ChannelType struct {
	Inner Type
}

func (ChannelType) isType() {}

func (t ChannelType) String() string {
	return "(chan " + t.Inner.String() + ")"
}

// Equal implements Type.
func (t ChannelType) Equal(other Type) bool {
	o, ok := other.(ChannelType)
	return ok && TypesEqual(o.Inner, t.Inner)
}

// ArrayType is a fixed-length array of Elem.
type ArrayType struct {
	Elem Type
	Len  int
}

func (ArrayType) isType() {}

func (t ArrayType) String() string {
	return "(array " + strconv.Itoa(t.Len) + " " + t.Elem.String() + ")"
}

// Equal implements Type.
func (t ArrayType) Equal(other Type) bool {
	o, ok := other.(ArrayType)
	return ok && o.Len == t.Len && TypesEqual(o.Elem, t.Elem)
}

// ChannelDirection is the direction of a bundled channel relative to the
// bundle's producer.
type ChannelDirection uint8

const (
	// To channels flow from the bundle's producer to its consumer.
	To ChannelDirection = iota
	// From channels flow back from the consumer to the producer.
	From
)

func (d ChannelDirection) String() string {
	switch d {
	case To:
		return "to"
	case From:
		return "from"
	}
	return "dir(" + strconv.Itoa(int(d)) + ")"
}

// Flip returns the opposite direction.
func (d ChannelDirection) Flip() ChannelDirection {
	if d == To {
		return From
	}
	return To
}

// BundledChannel is one named, directional channel of a bundle.
type BundledChannel struct {
	Type      Type
	Name      string
	Direction ChannelDirection
}

// BundleType is an ordered group of independently flow-controlled channels
// exposed as a single value. Channel names are unique within a bundle.
type BundleType struct {
	Channels []BundledChannel
}

// NewBundleType creates a bundle type from its channels in declaration order.
func NewBundleType(channels ...BundledChannel) BundleType {
	chs := make([]BundledChannel, len(channels))
	copy(chs, channels)
	return BundleType{Channels: chs}
}

func (BundleType) isType() {}

func (t BundleType) String() string {
	var b strings.Builder
	b.WriteString("(bundle")
	for _, ch := range t.Channels {
		b.WriteString(" (")
		b.WriteString(ch.Direction.String())
		b.WriteByte(' ')
		b.WriteString(ch.Name)
		b.WriteByte(' ')
		b.WriteString(ch.Type.String())
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

// Equal implements Type.
func (t BundleType) Equal(other Type) bool {
	o, ok := other.(BundleType)
	if !ok || len(o.Channels) != len(t.Channels) {
		return false
	}
	for i, ch := range t.Channels {
		oc := o.Channels[i]
		if oc.Name != ch.Name || oc.Direction != ch.Direction || !TypesEqual(oc.Type, ch.Type) {
			return false
		}
	}
	return true
}

// Filter returns the channels with the given direction, in declaration order.
func (t BundleType) Filter(dir ChannelDirection) []BundledChannel {
	var out []BundledChannel
	for _, ch := range t.Channels {
		if ch.Direction == dir {
			out = append(out, ch)
		}
	}
	return out
}

// Channel looks up a channel by name.
func (t BundleType) Channel(name string) (BundledChannel, bool) {
	for _, ch := range t.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return BundledChannel{}, false
}

// TypesEqual compares two possibly-nil types.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// TypeString renders a possibly-nil type.
func TypeString(t Type) string {
	if t == nil {
		return "<unknown>"
	}
	return t.String()
}

// BundleShape describes a type that pack/unpack can operate on: either a
// bare bundle, or an array of N bundles whose channels are carried as
// arrays of N channel values.
type BundleShape struct {
	Bundle  BundleType
	Len     int
	Arrayed bool
}

// ShapeOf classifies t as a bundle or an array of bundles.
func ShapeOf(t Type) (BundleShape, bool) {
	switch v := t.(type) {
	case BundleType:
		return BundleShape{Bundle: v}, true
	case ArrayType:
		if b, ok := v.Elem.(BundleType); ok {
			return BundleShape{Bundle: b, Len: v.Len, Arrayed: true}, true
		}
	}
	return BundleShape{}, false
}

// ChannelType returns the value type carrying ch under this shape.
func (s BundleShape) ChannelType(ch BundledChannel) Type {
	if s.Arrayed {
		return ArrayType{Elem: ch.Type, Len: s.Len}
	}
	return ch.Type
}

// Type returns the aggregate type this shape describes.
func (s BundleShape) Type() Type {
	if s.Arrayed {
		return ArrayType{Elem: s.Bundle, Len: s.Len}
	}
	return s.Bundle
}

// ChannelTypes returns the value types of the channels with the given
// direction, in declaration order.
func (s BundleShape) ChannelTypes(dir ChannelDirection) []Type {
	var out []Type
	for _, ch := range s.Bundle.Filter(dir) {
		out = append(out, s.ChannelType(ch))
	}
	return out
}
