package op

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns one operation per tag with every field set from the
// given generators, so the same table covers zero and extreme values.
func sample(i32 int32, i64 int64, ref PayloadRef, b bool, r Result) []Operation {
	return []Operation{
		AllocateRecord{Result: r},
		SetAttributeRecordID{FileID: i32, RecordID: i32, Result: r},
		SetContentRecordID{FileID: i32, RecordID: i32, Result: r},
		SetParent{FileID: i32, ParentID: i32, Result: r},
		SetNameID{FileID: i32, NameID: i32, Result: r},
		SetFlags{FileID: i32, Flags: i32, Result: r},
		SetLength{FileID: i32, Length: i64, Result: r},
		SetTimestamp{FileID: i32, Timestamp: i64, Result: r},
		MarkModified{FileID: i32, Result: r},
		FillRecord{FileID: i32, Timestamp: i64, Length: i64, Flags: i32, NameID: i32, ParentID: i32, OverwriteMissed: b, Result: r},
		CleanRecord{FileID: i32, Result: r},
		SetRecordsVersion{Version: i32, Result: r},
		WriteAttribute{FileID: i32, AttributeID: i32, Data: ref, Result: r},
		DeleteAttributes{FileID: i32, Result: r},
		SetAttributesVersion{Version: i32, Result: r},
		WriteBytes{RecordID: i32, FixedSize: b, Data: ref, Result: r},
		WriteStream{RecordID: i32, Data: ref, Result: r},
		WriteStream2{RecordID: i32, FixedSize: b, Data: ref, Result: r},
		AppendStream{RecordID: i32, Data: ref, Result: r},
		ReplaceBytes{RecordID: i32, Offset: i32, Data: ref, Result: r},
		AcquireNewContentRecord{Result: r},
		AcquireContentRecord{RecordID: i32, Result: r},
		ReleaseContentRecord{RecordID: i32, Result: r},
		SetContentsVersion{Version: i32, Result: r},
		ContentChangeEvent{Timestamp: i64, FileID: i32},
		CopyEvent{Timestamp: i64, FileID: i32, NewParentID: i32},
		CreateEvent{Timestamp: i64, ParentID: i32, ChildName: ref, IsDirectory: b},
		DeleteEvent{Timestamp: i64, FileID: i32},
		MoveEvent{Timestamp: i64, FileID: i32, OldParentID: i32, NewParentID: i32},
		PropertyChangeEvent{Timestamp: i64, FileID: i32, PropertyName: ref, OldValue: ref, NewValue: ref},
		EndEvent{EventTag: EventCreate},
	}
}

func TestSampleCoversCatalog(t *testing.T) {
	ops := sample(0, 0, 0, false, Unit())
	require.Len(t, ops, int(MaxTag))
	for i, o := range ops {
		assert.Equal(t, Tag(i+1), o.Tag())
	}
}

func TestRoundTrip(t *testing.T) {
	cases := map[string][]Operation{
		"zero":     sample(0, 0, 0, false, Unit()),
		"max":      sample(math.MaxInt32, math.MaxInt64, PayloadRef(math.MaxUint64), true, Int(math.MaxInt64)),
		"min":      sample(math.MinInt32, math.MinInt64, 1, true, Int(math.MinInt64)),
		"bool":     sample(7, 8, 9, false, Bool(true)),
		"failures": sample(-1, -1, 42, true, Exception(PayloadRef(SourceExternal)<<56|12)),
	}

	for name, ops := range cases {
		t.Run(name, func(t *testing.T) {
			for _, o := range ops {
				n, err := ValueSize(o.Tag())
				require.NoError(t, err)

				buf := make([]byte, n)
				require.NoError(t, Marshal(o, buf), o.Tag().String())

				got, err := Unmarshal(o.Tag(), buf)
				require.NoError(t, err, o.Tag().String())
				assert.Equal(t, o, got)
			}
		})
	}
}

func TestMarshalSizeMismatch(t *testing.T) {
	err := Marshal(AllocateRecord{Result: Unit()}, make([]byte, ResultSize+1))
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Unmarshal(RecSetParent, make([]byte, 3))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestUnmarshalRejectsUnsupportedTag(t *testing.T) {
	_, err := Unmarshal(TagNull, nil)
	assert.ErrorIs(t, err, ErrUnsupportedTag)

	_, err = Unmarshal(MaxTag+1, make([]byte, 4))
	assert.ErrorIs(t, err, ErrUnsupportedTag)
}

func TestUnmarshalRejectsBadResultKind(t *testing.T) {
	buf := make([]byte, ResultSize)
	buf[0] = 0xEE
	_, err := Unmarshal(RecAllocate, buf)
	assert.ErrorIs(t, err, ErrBadResult)
}

func TestUnmarshalRejectsBadBool(t *testing.T) {
	o := WriteBytes{RecordID: 1, FixedSize: true, Data: 2, Result: Unit()}
	buf := make([]byte, valueSizes[ContentWriteBytes])
	require.NoError(t, Marshal(o, buf))

	buf[4] = 2
	_, err := Unmarshal(ContentWriteBytes, buf)
	assert.ErrorIs(t, err, ErrBadBool)
}

func TestEndEventMustReferenceStart(t *testing.T) {
	err := Marshal(EndEvent{EventTag: RecAllocate}, make([]byte, 1))
	assert.Error(t, err)

	_, err = Unmarshal(EventEnd, []byte{byte(EventEnd)})
	assert.Error(t, err)
}

func TestResultOf(t *testing.T) {
	r, ok := ResultOf(SetParent{FileID: 42, ParentID: 1, Result: Unit()})
	require.True(t, ok)
	assert.True(t, r.Success())

	_, ok = ResultOf(CreateEvent{Timestamp: 1})
	assert.False(t, ok)

	ts, ok := Timestamp(MoveEvent{Timestamp: 99})
	require.True(t, ok)
	assert.Equal(t, int64(99), ts)
}
