package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsSuffix(t *testing.T) {
	got, err := Sanitize("Foo.P2P", ".p2p")
	require.NoError(t, err)
	assert.Equal(t, "foo.p2p", got, "suffix match is case-sensitive")

	got, err = Sanitize("Foo.p2p", ".p2p")
	require.NoError(t, err)
	assert.Equal(t, "foo", got)
}

func TestSanitizeWithoutSuffix(t *testing.T) {
	got, err := Sanitize("Bar", ".p2p")
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
}

func TestSanitizeTooLong(t *testing.T) {
	long := make([]byte, MaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := Sanitize(string(long), ".p2p")
	require.Equal(t, ErrTooLong, err)
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"foo.p2p":   true,
		"foo_bar-1": true,
		"":          true,
		"foo bar":   false,
		"foo/bar":   false,
		"foo?bar":   false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid(in), "Valid(%q)", in)
	}
}
