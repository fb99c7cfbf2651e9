package op

import (
	"fmt"
	"strings"
)

// Mask is a set of tags, one bit per tag ordinal. Scans use it to decide
// which descriptors are worth deserializing.
type Mask uint64

// NewMask returns the mask holding exactly tags.
func NewMask(tags ...Tag) Mask {
	var m Mask
	for _, t := range tags {
		m |= 1 << t
	}
	return m
}

// familyMask collects every tag of family f.
func familyMask(f Family) Mask {
	var m Mask
	for t := RecAllocate; t <= MaxTag; t++ {
		if t.Family() == f {
			m |= 1 << t
		}
	}
	return m
}

// Precomputed family masks.
var (
	RecordMask     = familyMask(FamilyRecord)
	AttributeMask  = familyMask(FamilyAttribute)
	ContentMask    = familyMask(FamilyContent)
	EventStartMask = familyMask(FamilyEventStart)
	EventEndMask   = NewMask(EventEnd)
	EventMask      = EventStartMask | EventEndMask
	AllMask        = RecordMask | AttributeMask | ContentMask | EventMask
)

// Contains reports whether t is in m.
func (m Mask) Contains(t Tag) bool {
	if t > MaxTag {
		return false
	}
	return m&(1<<t) != 0
}

// Union returns the tags in m or o.
func (m Mask) Union(o Mask) Mask {
	return m | o
}

// With returns m extended by tags.
func (m Mask) With(tags ...Tag) Mask {
	return m | NewMask(tags...)
}

// Tags lists the tags in m in ordinal order.
func (m Mask) Tags() []Tag {
	var out []Tag
	for t := RecAllocate; t <= MaxTag; t++ {
		if m.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// ParseMask builds a mask from a comma separated list of family names
// ("record", "attribute", "content", "event-start", "event-end", "event",
// "all") and tag names. An empty string yields AllMask.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AllMask, nil
	}
	var m Mask
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "record":
			m |= RecordMask
		case "attribute":
			m |= AttributeMask
		case "content":
			m |= ContentMask
		case "event-start":
			m |= EventStartMask
		case "event-end":
			m |= EventEndMask
		case "event":
			m |= EventMask
		case "all":
			m |= AllMask
		default:
			t, err := ParseTag(part)
			if err != nil {
				return 0, fmt.Errorf("parse mask: %w", err)
			}
			m |= NewMask(t)
		}
	}
	return m, nil
}
