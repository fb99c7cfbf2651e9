// Fixed-layout serialization of operation values.
//
// Every value is a run of little-endian fixed-width fields in declaration
// order; there are no length prefixes because the tag alone determines the
// size. Marshal and Unmarshal dispatch with a switch on the tag so that
// adding a variant means adding a case here and a size in tag.go.
package op

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrSizeMismatch = errors.New("value buffer size does not match tag")
	ErrBadResult    = errors.New("malformed result")
	ErrBadBool      = errors.New("malformed bool")
)

type encoder struct {
	buf []byte
	off int
}

func (e *encoder) i32(v int32) {
	binary.LittleEndian.PutUint32(e.buf[e.off:], uint32(v))
	e.off += int32Size
}

func (e *encoder) i64(v int64) {
	binary.LittleEndian.PutUint64(e.buf[e.off:], uint64(v))
	e.off += int64Size
}

func (e *encoder) ref(r PayloadRef) {
	binary.LittleEndian.PutUint64(e.buf[e.off:], uint64(r))
	e.off += refSize
}

func (e *encoder) bool(v bool) {
	var b byte
	if v {
		b = 1
	}
	e.buf[e.off] = b
	e.off += boolSize
}

func (e *encoder) result(r Result) {
	e.buf[e.off] = byte(r.Kind)
	e.off++
	e.i64(r.Value)
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) i32() int32 {
	v := int32(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += int32Size
	return v
}

func (d *decoder) i64() int64 {
	v := int64(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += int64Size
	return v
}

func (d *decoder) ref() PayloadRef {
	v := PayloadRef(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += refSize
	return v
}

func (d *decoder) bool() bool {
	b := d.buf[d.off]
	d.off += boolSize
	if b > 1 && d.err == nil {
		d.err = fmt.Errorf("%w: %d", ErrBadBool, b)
	}
	return b == 1
}

func (d *decoder) result() Result {
	k := ResultKind(d.buf[d.off])
	d.off++
	r := Result{Kind: k, Value: d.i64()}
	if (k < ResultUnit || k > ResultException) && d.err == nil {
		d.err = fmt.Errorf("%w: kind %d", ErrBadResult, k)
	}
	return r
}

// Marshal writes the value of o into buf, which must be exactly
// ValueSize(o.Tag()) bytes long.
func Marshal(o Operation, buf []byte) error {
	n, err := ValueSize(o.Tag())
	if err != nil {
		return err
	}
	if len(buf) != n {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrSizeMismatch, o.Tag(), n, len(buf))
	}

	e := &encoder{buf: buf}
	switch v := o.(type) {
	case AllocateRecord:
		e.result(v.Result)
	case SetAttributeRecordID:
		e.i32(v.FileID)
		e.i32(v.RecordID)
		e.result(v.Result)
	case SetContentRecordID:
		e.i32(v.FileID)
		e.i32(v.RecordID)
		e.result(v.Result)
	case SetParent:
		e.i32(v.FileID)
		e.i32(v.ParentID)
		e.result(v.Result)
	case SetNameID:
		e.i32(v.FileID)
		e.i32(v.NameID)
		e.result(v.Result)
	case SetFlags:
		e.i32(v.FileID)
		e.i32(v.Flags)
		e.result(v.Result)
	case SetLength:
		e.i32(v.FileID)
		e.i64(v.Length)
		e.result(v.Result)
	case SetTimestamp:
		e.i32(v.FileID)
		e.i64(v.Timestamp)
		e.result(v.Result)
	case MarkModified:
		e.i32(v.FileID)
		e.result(v.Result)
	case FillRecord:
		e.i32(v.FileID)
		e.i64(v.Timestamp)
		e.i64(v.Length)
		e.i32(v.Flags)
		e.i32(v.NameID)
		e.i32(v.ParentID)
		e.bool(v.OverwriteMissed)
		e.result(v.Result)
	case CleanRecord:
		e.i32(v.FileID)
		e.result(v.Result)
	case SetRecordsVersion:
		e.i32(v.Version)
		e.result(v.Result)
	case WriteAttribute:
		e.i32(v.FileID)
		e.i32(v.AttributeID)
		e.ref(v.Data)
		e.result(v.Result)
	case DeleteAttributes:
		e.i32(v.FileID)
		e.result(v.Result)
	case SetAttributesVersion:
		e.i32(v.Version)
		e.result(v.Result)
	case WriteBytes:
		e.i32(v.RecordID)
		e.bool(v.FixedSize)
		e.ref(v.Data)
		e.result(v.Result)
	case WriteStream:
		e.i32(v.RecordID)
		e.ref(v.Data)
		e.result(v.Result)
	case WriteStream2:
		e.i32(v.RecordID)
		e.bool(v.FixedSize)
		e.ref(v.Data)
		e.result(v.Result)
	case AppendStream:
		e.i32(v.RecordID)
		e.ref(v.Data)
		e.result(v.Result)
	case ReplaceBytes:
		e.i32(v.RecordID)
		e.i32(v.Offset)
		e.ref(v.Data)
		e.result(v.Result)
	case AcquireNewContentRecord:
		e.result(v.Result)
	case AcquireContentRecord:
		e.i32(v.RecordID)
		e.result(v.Result)
	case ReleaseContentRecord:
		e.i32(v.RecordID)
		e.result(v.Result)
	case SetContentsVersion:
		e.i32(v.Version)
		e.result(v.Result)
	case ContentChangeEvent:
		e.i64(v.Timestamp)
		e.i32(v.FileID)
	case CopyEvent:
		e.i64(v.Timestamp)
		e.i32(v.FileID)
		e.i32(v.NewParentID)
	case CreateEvent:
		e.i64(v.Timestamp)
		e.i32(v.ParentID)
		e.ref(v.ChildName)
		e.bool(v.IsDirectory)
	case DeleteEvent:
		e.i64(v.Timestamp)
		e.i32(v.FileID)
	case MoveEvent:
		e.i64(v.Timestamp)
		e.i32(v.FileID)
		e.i32(v.OldParentID)
		e.i32(v.NewParentID)
	case PropertyChangeEvent:
		e.i64(v.Timestamp)
		e.i32(v.FileID)
		e.ref(v.PropertyName)
		e.ref(v.OldValue)
		e.ref(v.NewValue)
	case EndEvent:
		if !v.EventTag.IsEventStart() {
			return fmt.Errorf("marshal %s: %s does not start an event", o.Tag(), v.EventTag)
		}
		e.buf[0] = byte(v.EventTag)
		e.off++
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedTag, o)
	}

	if e.off != n {
		return fmt.Errorf("%w: %s wrote %d of %d bytes", ErrSizeMismatch, o.Tag(), e.off, n)
	}
	return nil
}

// Unmarshal decodes the value of a tag t operation from buf.
func Unmarshal(t Tag, buf []byte) (Operation, error) {
	n, err := ValueSize(t)
	if err != nil {
		return nil, err
	}
	if len(buf) != n {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrSizeMismatch, t, n, len(buf))
	}

	d := &decoder{buf: buf}
	var o Operation
	switch t {
	case RecAllocate:
		o = AllocateRecord{Result: d.result()}
	case RecSetAttributeRecordID:
		o = SetAttributeRecordID{FileID: d.i32(), RecordID: d.i32(), Result: d.result()}
	case RecSetContentRecordID:
		o = SetContentRecordID{FileID: d.i32(), RecordID: d.i32(), Result: d.result()}
	case RecSetParent:
		o = SetParent{FileID: d.i32(), ParentID: d.i32(), Result: d.result()}
	case RecSetNameID:
		o = SetNameID{FileID: d.i32(), NameID: d.i32(), Result: d.result()}
	case RecSetFlags:
		o = SetFlags{FileID: d.i32(), Flags: d.i32(), Result: d.result()}
	case RecSetLength:
		o = SetLength{FileID: d.i32(), Length: d.i64(), Result: d.result()}
	case RecSetTimestamp:
		o = SetTimestamp{FileID: d.i32(), Timestamp: d.i64(), Result: d.result()}
	case RecMarkModified:
		o = MarkModified{FileID: d.i32(), Result: d.result()}
	case RecFill:
		o = FillRecord{
			FileID:          d.i32(),
			Timestamp:       d.i64(),
			Length:          d.i64(),
			Flags:           d.i32(),
			NameID:          d.i32(),
			ParentID:        d.i32(),
			OverwriteMissed: d.bool(),
			Result:          d.result(),
		}
	case RecClean:
		o = CleanRecord{FileID: d.i32(), Result: d.result()}
	case RecSetVersion:
		o = SetRecordsVersion{Version: d.i32(), Result: d.result()}
	case AttrWrite:
		o = WriteAttribute{FileID: d.i32(), AttributeID: d.i32(), Data: d.ref(), Result: d.result()}
	case AttrDeleteAll:
		o = DeleteAttributes{FileID: d.i32(), Result: d.result()}
	case AttrSetVersion:
		o = SetAttributesVersion{Version: d.i32(), Result: d.result()}
	case ContentWriteBytes:
		o = WriteBytes{RecordID: d.i32(), FixedSize: d.bool(), Data: d.ref(), Result: d.result()}
	case ContentWriteStream:
		o = WriteStream{RecordID: d.i32(), Data: d.ref(), Result: d.result()}
	case ContentWriteStream2:
		o = WriteStream2{RecordID: d.i32(), FixedSize: d.bool(), Data: d.ref(), Result: d.result()}
	case ContentAppendStream:
		o = AppendStream{RecordID: d.i32(), Data: d.ref(), Result: d.result()}
	case ContentReplaceBytes:
		o = ReplaceBytes{RecordID: d.i32(), Offset: d.i32(), Data: d.ref(), Result: d.result()}
	case ContentAcquireNewRecord:
		o = AcquireNewContentRecord{Result: d.result()}
	case ContentAcquireRecord:
		o = AcquireContentRecord{RecordID: d.i32(), Result: d.result()}
	case ContentReleaseRecord:
		o = ReleaseContentRecord{RecordID: d.i32(), Result: d.result()}
	case ContentSetVersion:
		o = SetContentsVersion{Version: d.i32(), Result: d.result()}
	case EventContentChange:
		o = ContentChangeEvent{Timestamp: d.i64(), FileID: d.i32()}
	case EventCopy:
		o = CopyEvent{Timestamp: d.i64(), FileID: d.i32(), NewParentID: d.i32()}
	case EventCreate:
		o = CreateEvent{Timestamp: d.i64(), ParentID: d.i32(), ChildName: d.ref(), IsDirectory: d.bool()}
	case EventDelete:
		o = DeleteEvent{Timestamp: d.i64(), FileID: d.i32()}
	case EventMove:
		o = MoveEvent{Timestamp: d.i64(), FileID: d.i32(), OldParentID: d.i32(), NewParentID: d.i32()}
	case EventPropertyChange:
		o = PropertyChangeEvent{
			Timestamp:    d.i64(),
			FileID:       d.i32(),
			PropertyName: d.ref(),
			OldValue:     d.ref(),
			NewValue:     d.ref(),
		}
	case EventEnd:
		et := Tag(buf[0])
		if !et.IsEventStart() {
			return nil, fmt.Errorf("unmarshal %s: %s does not start an event", t, et)
		}
		o = EndEvent{EventTag: et}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTag, uint8(t))
	}

	if d.err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", t, d.err)
	}
	return o, nil
}
