package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterIndentsEveryLine(t *testing.T) {
	var out strings.Builder
	printer, err := NewPrinter("  ", &out)
	require.NoError(t, err)

	require.NoError(t, printer.Writeln("a\nb", 1))
	assert.Equal(t, "  a\n  b\n", out.String())
}

func TestPrinterWritesToAllHooks(t *testing.T) {
	var first, second strings.Builder
	printer, err := NewPrinter("", &first, &second)
	require.NoError(t, err)

	require.NoError(t, printer.Write("hello", 0))
	assert.Equal(t, "hello", first.String())
	assert.Equal(t, "hello", second.String())
}

func TestNewPrinterRequiresHooks(t *testing.T) {
	_, err := NewPrinter("  ")
	assert.Error(t, err)

	_, err = NewPrinter("  ", nil)
	assert.Error(t, err)
}
