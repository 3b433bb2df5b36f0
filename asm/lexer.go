package asm

import "strings"

// SourceLine is one logical line of assembly after comment stripping
// and tokenization, but before any label address or operand value has
// been resolved (spec.md §4.3.1 "Lexical structure").
//
// Grounded on parser/lexer.go's line-oriented token shape; duovm's
// source format needs none of that file's ARM condition-code or
// shift-operand tokens, so this is a much smaller, line-at-a-time
// tokenizer rather than a full character-class state machine.
type SourceLine struct {
	Pos       Position
	Label     string   // without the trailing colon; empty if none
	Directive string   // e.g. ".MODE"; empty if this is an instruction line
	DirArgs   []string
	Mnemonic  string   // empty if this line is label/directive-only
	Operands  []string // raw, unparsed operand text
}

// Lex splits source into SourceLines, stripping ';' comments and blank
// lines. It never fails: malformed lines are reported as syntax errors
// by the caller once it tries to interpret Mnemonic/Directive.
func Lex(filename, source string) []SourceLine {
	var lines []SourceLine
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		text := stripComment(raw)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pos := Position{Filename: filename, Line: lineNo}

		label := ""
		if idx := strings.Index(text, ":"); idx >= 0 && !strings.HasPrefix(text, ".") {
			candidate := strings.TrimSpace(text[:idx])
			if isIdentifier(candidate) {
				label = candidate
				text = strings.TrimSpace(text[idx+1:])
			}
		}

		if text == "" {
			lines = append(lines, SourceLine{Pos: pos, Label: label})
			continue
		}

		fields := splitFields(text)
		head := fields[0]
		rest := fields[1:]

		if strings.HasPrefix(head, ".") {
			lines = append(lines, SourceLine{
				Pos:       pos,
				Label:     label,
				Directive: strings.ToUpper(head),
				DirArgs:   splitOperands(strings.Join(rest, " ")),
			})
			continue
		}

		lines = append(lines, SourceLine{
			Pos:      pos,
			Label:    label,
			Mnemonic: strings.ToUpper(head),
			Operands: splitOperands(strings.Join(rest, " ")),
		})
	}
	return lines
}

func stripComment(line string) string {
	inString := false
	for i, c := range line {
		switch c {
		case '\'', '"':
			inString = !inString
		case ';':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// splitFields separates the mnemonic/directive head from the remainder
// of the line on the first run of whitespace.
func splitFields(text string) []string {
	text = strings.TrimSpace(text)
	idx := strings.IndexAny(text, " \t")
	if idx < 0 {
		return []string{text}
	}
	return []string{text[:idx], strings.TrimSpace(text[idx:])}
}

// splitOperands splits a comma-separated operand list, respecting
// quoted string literals so a comma inside "a,b" is not a separator.
func splitOperands(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	inString := false
	for _, c := range text {
		switch {
		case c == '"':
			inString = !inString
			cur.WriteRune(c)
		case c == ',' && !inString:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
