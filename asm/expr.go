package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// evalExpr evaluates one operand expression: a single term, or two
// terms joined by exactly one of + - * / (spec.md §4.3.4 "a single
// binary operator, no precedence chain"). A term is a decimal or 0x
// hex integer literal, a 'c' character literal, or a label name
// resolved through st.
func evalExpr(text string, st *SymbolTable) (int64, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "#")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty operand")
	}

	if opIdx, op := findOperator(text); opIdx >= 0 {
		lhs, rhs := strings.TrimSpace(text[:opIdx]), strings.TrimSpace(text[opIdx+1:])
		a, err := evalTerm(lhs, st)
		if err != nil {
			return 0, err
		}
		b, err := evalTerm(rhs, st)
		if err != nil {
			return 0, err
		}
		switch op {
		case '+':
			return a + b, nil
		case '-':
			return a - b, nil
		case '*':
			return a * b, nil
		case '/':
			if b == 0 {
				return 0, fmt.Errorf("division by zero in expression %q", text)
			}
			return a / b, nil
		}
	}

	return evalTerm(text, st)
}

// findOperator locates the single binary operator in text, if any,
// skipping a leading unary minus on the whole expression ("-5" alone is
// one term). The first operator found is the split point, so a minus on
// the right-hand term stays with that term ("label - -1" is label+1).
func findOperator(text string) (int, byte) {
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '+', '*', '/':
			return i, text[i]
		case '-':
			// A leading '-' (i==0 handled by caller skipping) or one
			// immediately following another operator is unary, not the
			// split point.
			if i > 0 && !isOperatorByte(text[i-1]) {
				return i, text[i]
			}
		}
	}
	return -1, 0
}

func isOperatorByte(b byte) bool {
	switch b {
	case '+', '-', '*', '/':
		return true
	default:
		return false
	}
}

func evalTerm(text string, st *SymbolTable) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty term in expression")
	}

	if len(text) >= 3 && text[0] == '\'' && text[len(text)-1] == '\'' {
		ch := text[1 : len(text)-1]
		r, _, _, err := strconv.UnquoteChar(ch, '\'')
		if err != nil {
			return 0, fmt.Errorf("invalid character literal %q: %w", text, err)
		}
		return int64(r), nil
	}

	if isIdentifier(text) && !startsWithDigit(text) {
		if value, ok := st.Reference(text); ok {
			return int64(int32(value)), nil
		}
		return 0, fmt.Errorf("undefined label %q", text)
	}

	neg := false
	numText := text
	if strings.HasPrefix(numText, "-") {
		neg = true
		numText = numText[1:]
	}
	var v int64
	var err error
	if strings.HasPrefix(strings.ToLower(numText), "0x") {
		var u uint64
		u, err = strconv.ParseUint(numText[2:], 16, 64)
		v = int64(u)
	} else {
		v, err = strconv.ParseInt(numText, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q: %w", text, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func startsWithDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

// parseRegister recognizes an Rn operand.
func parseRegister(text string) (byte, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "R") && !strings.HasPrefix(text, "r") {
		return 0, false
	}
	n, err := strconv.Atoi(text[1:])
	if err != nil || n < 0 || n >= 32 {
		return 0, false
	}
	return byte(n), true
}

// parseStringLiteral recognizes a quoted .WORD string operand and
// returns its unescaped contents.
func parseStringLiteral(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
		return "", false
	}
	unquoted, err := strconv.Unquote(text)
	if err != nil {
		return "", false
	}
	return unquoted, true
}
