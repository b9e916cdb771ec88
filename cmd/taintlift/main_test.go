package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taintlift/taintlift"
	"github.com/taintlift/taintlift/x86"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestTraceCommand(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/basic.yaml")
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(out, "Program Counter"))
		assert.Contains(t, out, "0x400000: ")
		assert.Contains(t, out, "0x400007: ")
		assert.Contains(t, out, "ADD operation")
	})

	t.Run("Dump", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/basic.yaml", "--dump")
		require.NoError(t, err)
		assert.Contains(t, out, "Instructions: (int) 3")
		assert.Contains(t, out, "SymVar_0")
	})

	t.Run("SMT", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/basic.yaml", "--smt")
		require.NoError(t, err)
		assert.Contains(t, out, "(declare-fun SymVar_0 () (_ BitVec 64))")
		assert.Contains(t, out, "(define-fun ref!")
	})

	t.Run("Tree", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/basic.yaml", "--tree", "--simplify")
		require.NoError(t, err)
		assert.Contains(t, out, "-> rip = 0x400008")
	})

	t.Run("JSONL", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.jsonl")
		_, err := execute(t, "trace", "-c", "testdata/basic.yaml", "--jsonl", path)
		require.NoError(t, err)

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, bytes.Count(b, []byte("\n")))
		assert.Contains(t, string(b), `"thread":7`)
	})

	t.Run("SkipUnsupported", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/skip.yaml")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "Program Counter"))
		assert.Contains(t, out, "0x1002: nop")
	})

	t.Run("SkipUnsupportedOperand", func(t *testing.T) {
		out, err := execute(t, "trace", "-c", "testdata/canary.yaml")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "Program Counter"))
		assert.Contains(t, out, "0x1009: nop")
	})

	t.Run("ErrUnsupportedOperand", func(t *testing.T) {
		_, err := execute(t, "trace", "-c", "testdata/canary_strict.yaml")
		assert.ErrorIs(t, err, x86.ErrUnsupportedOperand)
	})

	t.Run("ErrUnsupportedOpcode", func(t *testing.T) {
		_, err := execute(t, "trace", "-c", "testdata/strict.yaml")
		assert.ErrorIs(t, err, taintlift.ErrUnsupportedOpcode)
	})

	t.Run("ErrConfigRequired", func(t *testing.T) {
		_, err := execute(t, "trace")
		assert.Error(t, err)
	})
}

func TestSyscallCommand(t *testing.T) {
	out, err := execute(t, "syscall", "60")
	require.NoError(t, err)
	assert.Equal(t, "exit\n", out)

	out, err = execute(t, "syscall", "mmap")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)

	_, err = execute(t, "syscall", "100000")
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
base: 0x1000
code: "48 89 d8"
registers: {rax: 0x1122, bh: 2}
flags: {zf: true}
memory:
  - {address: 0x2000, bytes: "efbeadde"}
taint:
  memory:
    - {address: 0x2000, size: 4}
`))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), config.Thread)
	assert.Equal(t, uint64(0x1000), config.Base)

	code, err := config.CodeBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0x89, 0xd8}, code)

	ctx := taintlift.NewContext(config.Thread)
	require.NoError(t, config.Apply(ctx))
	assert.Equal(t, uint64(0x1000), ctx.RegValue(taintlift.RIP))
	assert.Equal(t, uint64(0x1122), ctx.RegValue(taintlift.RAX))
	assert.Equal(t, uint64(0x200), ctx.RegValue(taintlift.RBX))
	assert.True(t, ctx.FlagValue(taintlift.ZF))
	assert.Equal(t, uint64(0xdeadbeef), ctx.MemValue(0x2000, 4))
	assert.True(t, ctx.IsTainted(taintlift.Mem(0x2003, 1)))
	assert.False(t, ctx.IsTainted(taintlift.Mem(0x2004, 1)))
	assert.Equal(t, uint64(0x89), ctx.MemValue(0x1001, 1))
}

func TestParseConfig_ErrUnknownRegister(t *testing.T) {
	config, err := ParseConfig([]byte(`registers: {xyz: 1}`))
	require.NoError(t, err)
	assert.Error(t, config.Apply(taintlift.NewContext(1)))
}
