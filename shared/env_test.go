package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenv(t *testing.T) {
	t.Setenv("REALTIME_TEST_STR", "hello")
	t.Setenv("REALTIME_TEST_INT", "42")
	t.Setenv("REALTIME_TEST_BOOL", "true")

	s, err := Getenv(GetenvString, "REALTIME_TEST_STR", true, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	i, err := Getenv(GetenvInt, "REALTIME_TEST_INT", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	b, err := Getenv(GetenvBool, "REALTIME_TEST_BOOL", true, false)
	require.NoError(t, err)
	assert.True(t, b)
}

func TestGetenvMissing(t *testing.T) {
	v, err := Getenv(GetenvString, "REALTIME_TEST_UNSET", false, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, err = Getenv(GetenvString, "REALTIME_TEST_UNSET", true, "")
	assert.Error(t, err)
}

func TestGetenvParseFailure(t *testing.T) {
	t.Setenv("REALTIME_TEST_INT", "not a number")
	_, err := Getenv(GetenvInt, "REALTIME_TEST_INT", true, 0)
	assert.Error(t, err)
}
