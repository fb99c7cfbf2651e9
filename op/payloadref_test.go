package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineRoundTrip(t *testing.T) {
	for n := 0; n <= MaxInline; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(0xF0 + i)
		}

		ref, err := Inline(data)
		require.NoError(t, err)
		assert.Equal(t, Source(n), ref.Source())
		assert.True(t, ref.IsInline())

		got, err := UnInline(ref)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestInlineTooLarge(t *testing.T) {
	_, err := Inline(make([]byte, MaxInline+1))
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestInlineZeroBytesDistinctByLength(t *testing.T) {
	a, err := Inline([]byte{0})
	require.NoError(t, err)
	b, err := Inline([]byte{0, 0})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestExternalRef(t *testing.T) {
	ref, err := ExternalRef(12345)
	require.NoError(t, err)
	assert.Equal(t, SourceExternal, ref.Source())
	assert.Equal(t, int64(12345), ref.Offset())
	assert.False(t, ref.IsInline())

	_, err = UnInline(ref)
	assert.ErrorIs(t, err, ErrInvalidRef)

	top, err := ExternalRef(MaxOffset)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxOffset), top.Offset())

	_, err = ExternalRef(MaxOffset + 1)
	assert.ErrorIs(t, err, ErrInvalidRef)
	_, err = ExternalRef(-1)
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestResultHelpers(t *testing.T) {
	assert.True(t, Bool(true).AsBool())
	assert.False(t, Bool(false).AsBool())
	assert.Equal(t, "ok(42)", Int(42).String())

	ref, _ := ExternalRef(7)
	r := Exception(ref)
	assert.False(t, r.Success())
	got, ok := r.ExceptionRef()
	require.True(t, ok)
	assert.Equal(t, ref, got)

	_, ok = Unit().ExceptionRef()
	assert.False(t, ok)
}
