package sandbox

import "strings"

// SplitStatements splits a script into trimmed, non-empty statements.
//
// A semicolon only ends a statement outside of quoted literals ('...' and
// "..." with doubled-quote escapes), dollar-quoted blocks ($tag$...$tag$) and
// comments. Unterminated literals, blocks and comments swallow the rest of the
// input into the current statement.
func SplitStatements(script string) ([]string, error) {
	var stmts []string
	start := 0
	n := len(script)

	for i := 0; i < n; {
		c := script[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(script, i, c)
		case c == '$':
			if tag, ok := dollarTag(script, i); ok {
				i = skipDollarBlock(script, i, tag)
			} else {
				i++
			}
		case c == '-' && i+1 < n && script[i+1] == '-':
			i = skipLineComment(script, i)
		case c == '/' && i+1 < n && script[i+1] == '*':
			i = skipBlockComment(script, i)
		case c == ';':
			stmts = appendStatement(stmts, script[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	stmts = appendStatement(stmts, script[start:])

	if len(stmts) == 0 {
		return nil, newError(KindEmptyScript, "script contains no SQL statements")
	}
	return stmts, nil
}

func appendStatement(stmts []string, raw string) []string {
	if s := strings.TrimSpace(raw); s != "" {
		return append(stmts, s)
	}
	return stmts
}

// skipQuoted returns the index just past the literal opened at s[i].
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// dollarTag reports whether s[i] opens a dollar-quoted block and returns the
// full delimiter, e.g. "$$" or "$body$". Positional parameters like $1 and a
// '$' continuing an identifier are not delimiters.
func dollarTag(s string, i int) (string, bool) {
	if i > 0 && isIdentChar(s[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(s) && s[j] == '$' {
		return "$$", true
	}
	if j >= len(s) || !isIdentStart(s[j]) {
		return "", false
	}
	for j++; j < len(s); j++ {
		if s[j] == '$' {
			return s[i : j+1], true
		}
		if !isIdentChar(s[j]) {
			return "", false
		}
	}
	return "", false
}

func skipDollarBlock(s string, i int, tag string) int {
	body := i + len(tag)
	end := strings.Index(s[body:], tag)
	if end < 0 {
		return len(s)
	}
	return body + end + len(tag)
}

func skipLineComment(s string, i int) int {
	end := strings.IndexByte(s[i:], '\n')
	if end < 0 {
		return len(s)
	}
	return i + end + 1
}

// skipBlockComment honours PostgreSQL's nested /* */ comments.
func skipBlockComment(s string, i int) int {
	depth := 0
	for j := i; j < len(s)-1; {
		switch {
		case s[j] == '/' && s[j+1] == '*':
			depth++
			j += 2
		case s[j] == '*' && s[j+1] == '/':
			depth--
			j += 2
			if depth == 0 {
				return j
			}
		default:
			j++
		}
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
