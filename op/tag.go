// Package op defines the closed catalog of operations recorded in the
// virtual-file-system operation log.
//
// Every operation kind has a Tag (a small positive ordinal that fits in a
// signed byte, because the log frames descriptors with the tag and marks
// reservations with its negation) and a fixed serialized value size. The
// catalog is versioned together with the log: adding, removing or
// reordering tags requires bumping the log version.
package op

import (
	"errors"
	"fmt"
)

// Tag identifies an operation kind. The zero tag is reserved and never
// written to the log.
type Tag uint8

// Record operations.
const (
	TagNull Tag = iota
	RecAllocate
	RecSetAttributeRecordID
	RecSetContentRecordID
	RecSetParent
	RecSetNameID
	RecSetFlags
	RecSetLength
	RecSetTimestamp
	RecMarkModified
	RecFill
	RecClean
	RecSetVersion
)

// Attribute operations.
const (
	AttrWrite Tag = iota + RecSetVersion + 1
	AttrDeleteAll
	AttrSetVersion
)

// Content operations.
const (
	ContentWriteBytes Tag = iota + AttrSetVersion + 1
	ContentWriteStream
	ContentWriteStream2
	ContentAppendStream
	ContentReplaceBytes
	ContentAcquireNewRecord
	ContentAcquireRecord
	ContentReleaseRecord
	ContentSetVersion
)

// File-system event operations. Every start tag is closed by EventEnd.
const (
	EventContentChange Tag = iota + ContentSetVersion + 1
	EventCopy
	EventCreate
	EventDelete
	EventMove
	EventPropertyChange
	EventEnd
)

// MaxTag is the highest supported tag ordinal.
const MaxTag = EventEnd

// ErrUnsupportedTag is returned for the null tag and any ordinal outside
// the catalog.
var ErrUnsupportedTag = errors.New("unsupported operation tag")

// Family groups tags for masking and display.
type Family int

const (
	FamilyNone Family = iota
	FamilyRecord
	FamilyAttribute
	FamilyContent
	FamilyEventStart
	FamilyEventEnd
)

func (f Family) String() string {
	switch f {
	case FamilyRecord:
		return "record"
	case FamilyAttribute:
		return "attribute"
	case FamilyContent:
		return "content"
	case FamilyEventStart:
		return "event-start"
	case FamilyEventEnd:
		return "event-end"
	default:
		return "none"
	}
}

// Fixed field widths.
const (
	int32Size  = 4
	int64Size  = 8
	boolSize   = 1
	refSize    = 8
	ResultSize = 1 + int64Size
)

var tagNames = [...]string{
	TagNull:                 "Null",
	RecAllocate:             "RecAllocate",
	RecSetAttributeRecordID: "RecSetAttributeRecordID",
	RecSetContentRecordID:   "RecSetContentRecordID",
	RecSetParent:            "RecSetParent",
	RecSetNameID:            "RecSetNameID",
	RecSetFlags:             "RecSetFlags",
	RecSetLength:            "RecSetLength",
	RecSetTimestamp:         "RecSetTimestamp",
	RecMarkModified:         "RecMarkModified",
	RecFill:                 "RecFill",
	RecClean:                "RecClean",
	RecSetVersion:           "RecSetVersion",
	AttrWrite:               "AttrWrite",
	AttrDeleteAll:           "AttrDeleteAll",
	AttrSetVersion:          "AttrSetVersion",
	ContentWriteBytes:       "ContentWriteBytes",
	ContentWriteStream:      "ContentWriteStream",
	ContentWriteStream2:     "ContentWriteStream2",
	ContentAppendStream:     "ContentAppendStream",
	ContentReplaceBytes:     "ContentReplaceBytes",
	ContentAcquireNewRecord: "ContentAcquireNewRecord",
	ContentAcquireRecord:    "ContentAcquireRecord",
	ContentReleaseRecord:    "ContentReleaseRecord",
	ContentSetVersion:       "ContentSetVersion",
	EventContentChange:      "EventContentChange",
	EventCopy:               "EventCopy",
	EventCreate:             "EventCreate",
	EventDelete:             "EventDelete",
	EventMove:               "EventMove",
	EventPropertyChange:     "EventPropertyChange",
	EventEnd:                "EventEnd",
}

// valueSizes holds the serialized value size of every tag, excluding the
// two framing bytes. Zero marks an unsupported slot.
var valueSizes = [...]int{
	RecAllocate:             ResultSize,
	RecSetAttributeRecordID: 2*int32Size + ResultSize,
	RecSetContentRecordID:   2*int32Size + ResultSize,
	RecSetParent:            2*int32Size + ResultSize,
	RecSetNameID:            2*int32Size + ResultSize,
	RecSetFlags:             2*int32Size + ResultSize,
	RecSetLength:            int32Size + int64Size + ResultSize,
	RecSetTimestamp:         int32Size + int64Size + ResultSize,
	RecMarkModified:         int32Size + ResultSize,
	RecFill:                 int32Size + 2*int64Size + 3*int32Size + boolSize + ResultSize,
	RecClean:                int32Size + ResultSize,
	RecSetVersion:           int32Size + ResultSize,
	AttrWrite:               2*int32Size + refSize + ResultSize,
	AttrDeleteAll:           int32Size + ResultSize,
	AttrSetVersion:          int32Size + ResultSize,
	ContentWriteBytes:       int32Size + boolSize + refSize + ResultSize,
	ContentWriteStream:      int32Size + refSize + ResultSize,
	ContentWriteStream2:     int32Size + boolSize + refSize + ResultSize,
	ContentAppendStream:     int32Size + refSize + ResultSize,
	ContentReplaceBytes:     2*int32Size + refSize + ResultSize,
	ContentAcquireNewRecord: ResultSize,
	ContentAcquireRecord:    int32Size + ResultSize,
	ContentReleaseRecord:    int32Size + ResultSize,
	ContentSetVersion:       int32Size + ResultSize,
	EventContentChange:      int64Size + int32Size,
	EventCopy:               int64Size + 2*int32Size,
	EventCreate:             int64Size + int32Size + refSize + boolSize,
	EventDelete:             int64Size + int32Size,
	EventMove:               int64Size + 3*int32Size,
	EventPropertyChange:     int64Size + int32Size + 3*refSize,
	EventEnd:                1,
}

// Valid reports whether t is a supported tag.
func (t Tag) Valid() bool {
	return t > TagNull && t <= MaxTag
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Family returns the family t belongs to.
func (t Tag) Family() Family {
	switch {
	case t >= RecAllocate && t <= RecSetVersion:
		return FamilyRecord
	case t >= AttrWrite && t <= AttrSetVersion:
		return FamilyAttribute
	case t >= ContentWriteBytes && t <= ContentSetVersion:
		return FamilyContent
	case t >= EventContentChange && t <= EventPropertyChange:
		return FamilyEventStart
	case t == EventEnd:
		return FamilyEventEnd
	default:
		return FamilyNone
	}
}

// IsEventStart reports whether t opens a file-system event range.
func (t Tag) IsEventStart() bool {
	return t.Family() == FamilyEventStart
}

// ValueSize returns the fixed serialized value size of t.
func ValueSize(t Tag) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedTag, uint8(t))
	}
	return valueSizes[t], nil
}

// DescriptorSize returns the framed size of t: its value plus a leading
// and a trailing tag byte.
func DescriptorSize(t Tag) (int, error) {
	n, err := ValueSize(t)
	if err != nil {
		return 0, err
	}
	return n + 2, nil
}

// Tags returns every supported tag in ordinal order.
func Tags() []Tag {
	out := make([]Tag, 0, MaxTag)
	for t := RecAllocate; t <= MaxTag; t++ {
		out = append(out, t)
	}
	return out
}

// ParseTag resolves a tag by name.
func ParseTag(name string) (Tag, error) {
	for t := RecAllocate; t <= MaxTag; t++ {
		if tagNames[t] == name {
			return t, nil
		}
	}
	return TagNull, fmt.Errorf("%w: %q", ErrUnsupportedTag, name)
}
