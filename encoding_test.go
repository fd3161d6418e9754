package dbf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodepageLookup(t *testing.T) {
	name, ok := CodepageName(0)
	assert.True(t, ok)
	assert.Equal(t, "utf-8", name)

	name, ok = CodepageName(0x7A)
	assert.True(t, ok)
	assert.Equal(t, "gbk", name)

	_, ok = CodepageName(0xEE)
	assert.False(t, ok)
	_, err := EncodingForCodepage(0xEE)
	assert.Error(t, err)

	assert.Equal(t, byte(0x03), CodepageMark("windows-1252"))
	assert.Equal(t, byte(0x7A), CodepageMark("GBK"))
	assert.Equal(t, byte(0), CodepageMark("utf-8"))
	assert.Equal(t, byte(0), CodepageMark("no-such-charset"))
}

func TestEncodingWindows1252(t *testing.T) {
	enc, err := EncodingForCodepage(0x03)
	require.NoError(t, err)

	b, err := enc.Encode("café")
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, b)

	s, err := enc.Decode([]byte{'n', 'a', 0xEF, 'v', 'e'})
	require.NoError(t, err)
	assert.Equal(t, "naïve", s)

	_, err = enc.Encode("中")
	assert.True(t, errors.Is(err, ErrInvalidFieldValue))
}

func TestNewEncodingUnknown(t *testing.T) {
	_, err := NewEncoding("no-such-charset")
	assert.Error(t, err)
}

func TestParseTrimOption(t *testing.T) {
	for in, want := range map[string]TrimOption{
		"":     TrimEnd,
		"end":  TrimEnd,
		"Both": TrimBoth,
		"none": TrimNone,
	} {
		got, err := ParseTrimOption(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTrimOption("sideways")
	assert.Error(t, err)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, TrimEnd, opts.Trim)
	assert.False(t, opts.Strict)
	assert.NotNil(t, opts.Logger)

	var nilOpts *Options
	assert.NotNil(t, nilOpts.withDefaults().Logger)
	assert.NotNil(t, (&Options{Strict: true}).withDefaults().Logger)
}
