package brio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `
local function greet(name)
  return "hello, " .. name
end

return greet("world")
`

func TestCompile(t *testing.T) {
	p, err := Compile("sample", sampleSource)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "sample", p.Source)
	assert.True(t, p.IsVararg)
	require.Len(t, p.Protos, 1)
	assert.Equal(t, uint8(1), p.Protos[0].NumParams)
}

func TestCompileError(t *testing.T) {
	p, err := Compile("bad", "local = 1")
	require.Error(t, err)
	assert.Nil(t, p)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindSyntax, cerr.Kind)
	assert.Equal(t, "bad", cerr.Source)
	assert.Equal(t, 1, cerr.Line)
	assert.True(t, strings.HasPrefix(err.Error(), "bad:1:"), err.Error())
}

func TestCompileReader(t *testing.T) {
	p, err := CompileReader("sample", strings.NewReader(sampleSource))
	require.NoError(t, err)
	assert.Equal(t, "sample", p.Source)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, assert.AnError
}

func TestCompileReaderPropagatesReadError(t *testing.T) {
	_, err := CompileReader("sample", failingReader{})
	require.ErrorIs(t, err, assert.AnError)
}

func TestDisassemble(t *testing.T) {
	p, err := Compile("sample", sampleSource)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Disassemble(&buf, p))
	out := buf.String()
	assert.Contains(t, out, "func main <sample:0>")
	assert.Contains(t, out, "CLOSURE")
	assert.Contains(t, out, "RETURN")
	assert.Contains(t, out, `"world"`)

	assert.Equal(t, out, Dump(p))
}

func TestCompileDeterministic(t *testing.T) {
	p1, err := Compile("sample", sampleSource)
	require.NoError(t, err)
	p2, err := Compile("sample", sampleSource)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
