// Package asm implements the two-pass assembler of spec.md §4.3: a
// line-oriented lexer, a label/expression resolver, and a binary
// encoder driven entirely by the isa package's opcode tables so the
// assembler and the VM can never disagree about an instruction's
// layout.
package asm

import (
	"fmt"
	"strings"
)

// Position locates a diagnostic within the source file.
type Position struct {
	Filename string
	Line     int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// ErrorKind categorizes an assembly error (spec.md §7 policy 1-2).
type ErrorKind int

const (
	ErrorSyntax ErrorKind = iota
	ErrorUndefinedLabel
	ErrorDuplicateLabel
	ErrorInvalidDirective
	ErrorInvalidInstruction
	ErrorInvalidOperand
	ErrorInvalidExpression
)

// Error is one diagnostic, always tied to a source line.
type Error struct {
	Pos     Position
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: error: %s", e.Pos, e.Message)
}

// Warning is a non-fatal diagnostic (e.g. an unreferenced label).
type Warning struct {
	Pos     Position
	Message string
}

func (w *Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
}

// ErrorList accumulates diagnostics across an entire assembly run so
// every line-numbered problem is reported together rather than one at
// a time (spec.md §7 "accumulate and continue").
type ErrorList struct {
	Errors   []*Error
	Warnings []*Warning
	max      int
}

// NewErrorList creates an ErrorList that stops accumulating new errors
// once maxErrors is reached (0 means unlimited).
func NewErrorList(maxErrors int) *ErrorList {
	return &ErrorList{max: maxErrors}
}

func (el *ErrorList) Addf(pos Position, kind ErrorKind, format string, a ...any) {
	if el.max > 0 && len(el.Errors) >= el.max {
		return
	}
	el.Errors = append(el.Errors, &Error{Pos: pos, Kind: kind, Message: fmt.Sprintf(format, a...)})
}

func (el *ErrorList) Warnf(pos Position, format string, a ...any) {
	el.Warnings = append(el.Warnings, &Warning{Pos: pos, Message: fmt.Sprintf(format, a...)})
}

func (el *ErrorList) HasErrors() bool { return len(el.Errors) > 0 }

func (el *ErrorList) Error() string {
	var sb strings.Builder
	for _, e := range el.Errors {
		sb.WriteString(e.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (el *ErrorList) WarningText() string {
	var sb strings.Builder
	for _, w := range el.Warnings {
		sb.WriteString(w.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
