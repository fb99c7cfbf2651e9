package op

// Operation is one immutable, tagged record of a state change. The set of
// implementations is closed: one struct per Tag, all defined here.
type Operation interface {
	Tag() Tag
	operation()
}

// Record operations.

// AllocateRecord allocates a new file record; Result carries its id.
type AllocateRecord struct {
	Result Result
}

// SetAttributeRecordID points a file at the record holding its attributes.
type SetAttributeRecordID struct {
	FileID   int32
	RecordID int32
	Result   Result
}

// SetContentRecordID points a file at the record holding its content.
type SetContentRecordID struct {
	FileID   int32
	RecordID int32
	Result   Result
}

// SetParent moves a file record under ParentID.
type SetParent struct {
	FileID   int32
	ParentID int32
	Result   Result
}

// SetNameID sets the interned name of a file record.
type SetNameID struct {
	FileID int32
	NameID int32
	Result Result
}

// SetFlags replaces the flags of a file record.
type SetFlags struct {
	FileID int32
	Flags  int32
	Result Result
}

// SetLength records the content length of a file.
type SetLength struct {
	FileID int32
	Length int64
	Result Result
}

// SetTimestamp records the modification time of a file.
type SetTimestamp struct {
	FileID    int32
	Timestamp int64
	Result    Result
}

// MarkModified bumps the modification counter of a file record.
type MarkModified struct {
	FileID int32
	Result Result
}

// FillRecord overwrites every field of a file record at once.
type FillRecord struct {
	FileID          int32
	Timestamp       int64
	Length          int64
	Flags           int32
	NameID          int32
	ParentID        int32
	OverwriteMissed bool
	Result          Result
}

// CleanRecord clears a file record for reuse.
type CleanRecord struct {
	FileID int32
	Result Result
}

// SetRecordsVersion stamps the version of the record store.
type SetRecordsVersion struct {
	Version int32
	Result  Result
}

// Attribute operations.

// WriteAttribute stores the attribute value referenced by Data.
type WriteAttribute struct {
	FileID      int32
	AttributeID int32
	Data        PayloadRef
	Result      Result
}

// DeleteAttributes removes every attribute of a file.
type DeleteAttributes struct {
	FileID int32
	Result Result
}

// SetAttributesVersion stamps the version of the attribute store.
type SetAttributesVersion struct {
	Version int32
	Result  Result
}

// Content operations.

// WriteBytes replaces the content of a record with Data.
type WriteBytes struct {
	RecordID  int32
	FixedSize bool
	Data      PayloadRef
	Result    Result
}

// WriteStream replaces the content of a record from a stream.
type WriteStream struct {
	RecordID int32
	Data     PayloadRef
	Result   Result
}

// WriteStream2 is WriteStream with an explicit fixed-size flag.
type WriteStream2 struct {
	RecordID  int32
	FixedSize bool
	Data      PayloadRef
	Result    Result
}

// AppendStream appends Data to the content of a record.
type AppendStream struct {
	RecordID int32
	Data     PayloadRef
	Result   Result
}

// ReplaceBytes overwrites content at Offset with Data.
type ReplaceBytes struct {
	RecordID int32
	Offset   int32
	Data     PayloadRef
	Result   Result
}

// AcquireNewContentRecord allocates a content record; Result carries its id.
type AcquireNewContentRecord struct {
	Result Result
}

// AcquireContentRecord takes a reference on a content record.
type AcquireContentRecord struct {
	RecordID int32
	Result   Result
}

// ReleaseContentRecord drops a reference on a content record.
type ReleaseContentRecord struct {
	RecordID int32
	Result   Result
}

// SetContentsVersion stamps the version of the content store.
type SetContentsVersion struct {
	Version int32
	Result  Result
}

// File-system event operations. Timestamps are unix milliseconds.

// ContentChangeEvent starts a change to the content of a file.
type ContentChangeEvent struct {
	Timestamp int64
	FileID    int32
}

// CopyEvent starts a copy of a file under NewParentID.
type CopyEvent struct {
	Timestamp   int64
	FileID      int32
	NewParentID int32
}

// CreateEvent starts the creation of ChildName under ParentID.
type CreateEvent struct {
	Timestamp   int64
	ParentID    int32
	ChildName   PayloadRef
	IsDirectory bool
}

// DeleteEvent starts the deletion of a file.
type DeleteEvent struct {
	Timestamp int64
	FileID    int32
}

// MoveEvent starts a move of a file between parents.
type MoveEvent struct {
	Timestamp   int64
	FileID      int32
	OldParentID int32
	NewParentID int32
}

// PropertyChangeEvent starts a change of a file property. The name and
// both values are payload refs.
type PropertyChangeEvent struct {
	Timestamp    int64
	FileID       int32
	PropertyName PayloadRef
	OldValue     PayloadRef
	NewValue     PayloadRef
}

// EndEvent closes the event range opened by a start of tag EventTag.
type EndEvent struct {
	EventTag Tag
}

func (AllocateRecord) Tag() Tag          { return RecAllocate }
func (SetAttributeRecordID) Tag() Tag    { return RecSetAttributeRecordID }
func (SetContentRecordID) Tag() Tag      { return RecSetContentRecordID }
func (SetParent) Tag() Tag               { return RecSetParent }
func (SetNameID) Tag() Tag               { return RecSetNameID }
func (SetFlags) Tag() Tag                { return RecSetFlags }
func (SetLength) Tag() Tag               { return RecSetLength }
func (SetTimestamp) Tag() Tag            { return RecSetTimestamp }
func (MarkModified) Tag() Tag            { return RecMarkModified }
func (FillRecord) Tag() Tag              { return RecFill }
func (CleanRecord) Tag() Tag             { return RecClean }
func (SetRecordsVersion) Tag() Tag       { return RecSetVersion }
func (WriteAttribute) Tag() Tag          { return AttrWrite }
func (DeleteAttributes) Tag() Tag        { return AttrDeleteAll }
func (SetAttributesVersion) Tag() Tag    { return AttrSetVersion }
func (WriteBytes) Tag() Tag              { return ContentWriteBytes }
func (WriteStream) Tag() Tag             { return ContentWriteStream }
func (WriteStream2) Tag() Tag            { return ContentWriteStream2 }
func (AppendStream) Tag() Tag            { return ContentAppendStream }
func (ReplaceBytes) Tag() Tag            { return ContentReplaceBytes }
func (AcquireNewContentRecord) Tag() Tag { return ContentAcquireNewRecord }
func (AcquireContentRecord) Tag() Tag    { return ContentAcquireRecord }
func (ReleaseContentRecord) Tag() Tag    { return ContentReleaseRecord }
func (SetContentsVersion) Tag() Tag      { return ContentSetVersion }
func (ContentChangeEvent) Tag() Tag      { return EventContentChange }
func (CopyEvent) Tag() Tag               { return EventCopy }
func (CreateEvent) Tag() Tag             { return EventCreate }
func (DeleteEvent) Tag() Tag             { return EventDelete }
func (MoveEvent) Tag() Tag               { return EventMove }
func (PropertyChangeEvent) Tag() Tag     { return EventPropertyChange }
func (EndEvent) Tag() Tag                { return EventEnd }

func (AllocateRecord) operation()          {}
func (SetAttributeRecordID) operation()    {}
func (SetContentRecordID) operation()      {}
func (SetParent) operation()               {}
func (SetNameID) operation()               {}
func (SetFlags) operation()                {}
func (SetLength) operation()               {}
func (SetTimestamp) operation()            {}
func (MarkModified) operation()            {}
func (FillRecord) operation()              {}
func (CleanRecord) operation()             {}
func (SetRecordsVersion) operation()       {}
func (WriteAttribute) operation()          {}
func (DeleteAttributes) operation()        {}
func (SetAttributesVersion) operation()    {}
func (WriteBytes) operation()              {}
func (WriteStream) operation()             {}
func (WriteStream2) operation()            {}
func (AppendStream) operation()            {}
func (ReplaceBytes) operation()            {}
func (AcquireNewContentRecord) operation() {}
func (AcquireContentRecord) operation()    {}
func (ReleaseContentRecord) operation()    {}
func (SetContentsVersion) operation()      {}
func (ContentChangeEvent) operation()      {}
func (CopyEvent) operation()               {}
func (CreateEvent) operation()             {}
func (DeleteEvent) operation()             {}
func (MoveEvent) operation()               {}
func (PropertyChangeEvent) operation()     {}
func (EndEvent) operation()                {}

// ResultOf returns the result carried by o. Event operations have none.
func ResultOf(o Operation) (Result, bool) {
	switch v := o.(type) {
	case AllocateRecord:
		return v.Result, true
	case SetAttributeRecordID:
		return v.Result, true
	case SetContentRecordID:
		return v.Result, true
	case SetParent:
		return v.Result, true
	case SetNameID:
		return v.Result, true
	case SetFlags:
		return v.Result, true
	case SetLength:
		return v.Result, true
	case SetTimestamp:
		return v.Result, true
	case MarkModified:
		return v.Result, true
	case FillRecord:
		return v.Result, true
	case CleanRecord:
		return v.Result, true
	case SetRecordsVersion:
		return v.Result, true
	case WriteAttribute:
		return v.Result, true
	case DeleteAttributes:
		return v.Result, true
	case SetAttributesVersion:
		return v.Result, true
	case WriteBytes:
		return v.Result, true
	case WriteStream:
		return v.Result, true
	case WriteStream2:
		return v.Result, true
	case AppendStream:
		return v.Result, true
	case ReplaceBytes:
		return v.Result, true
	case AcquireNewContentRecord:
		return v.Result, true
	case AcquireContentRecord:
		return v.Result, true
	case ReleaseContentRecord:
		return v.Result, true
	case SetContentsVersion:
		return v.Result, true
	default:
		return Result{}, false
	}
}

// Timestamp returns the start time of an event start operation.
func Timestamp(o Operation) (int64, bool) {
	switch v := o.(type) {
	case ContentChangeEvent:
		return v.Timestamp, true
	case CopyEvent:
		return v.Timestamp, true
	case CreateEvent:
		return v.Timestamp, true
	case DeleteEvent:
		return v.Timestamp, true
	case MoveEvent:
		return v.Timestamp, true
	case PropertyChangeEvent:
		return v.Timestamp, true
	default:
		return 0, false
	}
}
