package op

import "fmt"

// ResultKind tells how a Result's value is interpreted.
type ResultKind uint8

const (
	ResultUnit ResultKind = iota + 1
	ResultInt
	ResultBool
	ResultException
)

func (k ResultKind) String() string {
	switch k {
	case ResultUnit:
		return "unit"
	case ResultInt:
		return "int"
	case ResultBool:
		return "bool"
	case ResultException:
		return "exception"
	default:
		return fmt.Sprintf("ResultKind(%d)", uint8(k))
	}
}

// Result is the outcome of a logged action: a success value or a
// reference to the name of the exception class that aborted it.
type Result struct {
	Kind  ResultKind
	Value int64
}

// Unit is a successful result carrying no value.
func Unit() Result { return Result{Kind: ResultUnit} }

// Int is a successful result carrying v.
func Int(v int64) Result { return Result{Kind: ResultInt, Value: v} }

// Bool is a successful result carrying v.
func Bool(v bool) Result {
	var n int64
	if v {
		n = 1
	}
	return Result{Kind: ResultBool, Value: n}
}

// Exception is a failed result. name refers to the exception class name
// in the payload store.
func Exception(name PayloadRef) Result {
	return Result{Kind: ResultException, Value: int64(name)}
}

// Success reports whether r is not an exception.
func (r Result) Success() bool {
	return r.Kind != ResultException
}

// AsBool returns the value of a bool result.
func (r Result) AsBool() bool {
	return r.Value != 0
}

// ExceptionRef returns the exception class name ref of a failed result.
func (r Result) ExceptionRef() (PayloadRef, bool) {
	if r.Kind != ResultException {
		return 0, false
	}
	return PayloadRef(r.Value), true
}

func (r Result) String() string {
	switch r.Kind {
	case ResultUnit:
		return "ok"
	case ResultInt:
		return fmt.Sprintf("ok(%d)", r.Value)
	case ResultBool:
		return fmt.Sprintf("ok(%t)", r.AsBool())
	case ResultException:
		return fmt.Sprintf("exception(%s)", PayloadRef(r.Value))
	default:
		return r.Kind.String()
	}
}
