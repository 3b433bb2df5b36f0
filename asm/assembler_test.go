package asm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duovm/duovm/vm"
)

func assemble(t *testing.T, src string) *vm.Image {
	t.Helper()
	img, diags, err := Assemble("test.asm", src, Options{MaxErrors: 50, WarnUnreferencedLabels: true})
	require.NoError(t, err, "%s", diags.Error())
	return img
}

func TestAssembleRegisterAddAndRun(t *testing.T) {
	src := `
.MODE REGISTER
.HEAP 64
.HEAP_MAX 1024

main:
    LDI R1, #5
    LDI R2, #7
    ADD R0, R1, R2
    EXIT
`
	img := assemble(t, src)

	var buf bytes.Buffer
	m, err := vm.New(img, 0, strings.NewReader(""), &buf)
	require.NoError(t, err)

	code := m.Run()
	require.Equal(t, 12, code)
}

func TestAssembleStackAddAndRun(t *testing.T) {
	src := `
.MODE STACK
LDI #5
LDI #7
ADD
EXIT
`
	img := assemble(t, src)

	var buf bytes.Buffer
	m, err := vm.New(img, 0, strings.NewReader(""), &buf)
	require.NoError(t, err)

	code := m.Run()
	require.Equal(t, 12, code)
}

func TestAssembleJumpForwardReference(t *testing.T) {
	src := `
.MODE REGISTER
    JMP skip
    LDI R0, #99
skip:
    LDI R0, #1
    EXIT
`
	img := assemble(t, src)

	var buf bytes.Buffer
	m, err := vm.New(img, 0, strings.NewReader(""), &buf)
	require.NoError(t, err)

	code := m.Run()
	require.Equal(t, 1, code)
}

func TestAssembleDataLabel(t *testing.T) {
	src := `
.MODE REGISTER
main:
    NEW R0, R0
    STR R0, greeting
    EXIT
greeting:
    .WORD "hi", 0
`
	img := assemble(t, src)
	require.Greater(t, img.Header.DataStart, uint32(0))
	require.Less(t, int(img.Header.DataStart), len(img.Program))
}

func TestAssemblePrintFormatsPositionalArgument(t *testing.T) {
	// Pinned end-to-end scenario (spec.md §8.3): __print("%d\n", 123)
	// must produce stdout "123\n", not the literal format text.
	src := `
.MODE REGISTER
.HEAP 64
.HEAP_MAX 1024
main:
    STR R0, fmt
    LDI R1, #123
    SARG #0x80
    SARG #0
    SCALL #0
    LDI R0, #0
    EXIT
fmt:
    .WORD "%d\n"
`
	img := assemble(t, src)

	var buf bytes.Buffer
	m, err := vm.New(img, 0, strings.NewReader(""), &buf)
	require.NoError(t, err)

	code := m.Run()
	require.Equal(t, 0, code)
	require.Equal(t, "123\n", buf.String())
}

func TestAssembleDuplicateLabelIsError(t *testing.T) {
	src := `
.MODE REGISTER
again:
    NOP
again:
    EXIT
`
	_, diags, err := Assemble("test.asm", src, Options{MaxErrors: 50})
	require.Error(t, err)
	require.True(t, diags.HasErrors())
}

func TestAssembleUndefinedLabelIsError(t *testing.T) {
	src := `
.MODE REGISTER
    JMP nowhere
`
	_, diags, err := Assemble("test.asm", src, Options{MaxErrors: 50})
	require.Error(t, err)
	require.True(t, diags.HasErrors())
}

func TestAssembleUnreferencedLabelWarns(t *testing.T) {
	src := `
.MODE REGISTER
unused_label:
    NOP
main:
    EXIT
`
	_, diags, err := Assemble("test.asm", src, Options{MaxErrors: 50, WarnUnreferencedLabels: true})
	require.NoError(t, err)
	require.Len(t, diags.Warnings, 1)
	require.Contains(t, diags.Warnings[0].Message, "unused_label")
}

func TestAssembleRegisterAliasCannotBeLabel(t *testing.T) {
	src := `
.MODE REGISTER
R5:
    NOP
`
	_, diags, err := Assemble("test.asm", src, Options{MaxErrors: 50})
	require.Error(t, err)
	require.True(t, diags.HasErrors())
}
