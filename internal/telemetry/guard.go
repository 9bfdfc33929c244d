package telemetry

import (
	"fmt"
	"strings"
)

var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {},
	"DROP": {}, "CREATE": {}, "ALTER": {}, "TRUNCATE": {},
	"GRANT": {}, "REVOKE": {}, "CALL": {}, "EXPORT": {},
	"INTO": {}, "COPY": {}, "EXECUTE": {},
}

// lexRules describes how a backend quotes literals and writes comments.
// The guard must see the same token boundaries the engine sees, otherwise a
// quote the engine closes early can hide a second statement.
type lexRules struct {
	// backslash escapes a quote inside '...' and "..." literals.
	backslash bool
	// escapePrefix enables backslash escapes only in E'...' literals.
	escapePrefix bool
	// doubled treats a doubled quote inside a literal as an escaped quote.
	doubled bool
	// tripleQuotes enables '''...''' and """...""" literals.
	tripleQuotes bool
	// dollarQuotes enables $tag$...$tag$ literals.
	dollarQuotes bool
	// hashComments starts a line comment at #.
	hashComments bool
	// backticks quote identifiers with `...`.
	backticks bool
}

func lexRulesFor(backend string) lexRules {
	switch backend {
	case "postgres":
		return lexRules{escapePrefix: true, doubled: true, dollarQuotes: true}
	case "clickhouse":
		return lexRules{backslash: true, doubled: true, dollarQuotes: true, hashComments: true, backticks: true}
	default:
		return lexRules{backslash: true, tripleQuotes: true, hashComments: true, backticks: true}
	}
}

// CheckReadOnly rejects anything but a single SELECT/WITH statement. It is a
// lexical check using the quoting rules of backend: literals, quoted
// identifiers and comments are blanked out before keywords are inspected.
// maxLen <= 0 disables the length cap.
func CheckReadOnly(query, backend string, maxLen int) error {
	if maxLen > 0 && len(query) > maxLen {
		return &QueryError{Message: fmt.Sprintf("query rejected: %d bytes exceeds the %d byte limit", len(query), maxLen)}
	}

	stripped, err := stripLiterals(query, lexRulesFor(backend))
	if err != nil {
		return err
	}
	body := strings.TrimSpace(stripped)
	body = strings.TrimRight(body, "; \t\r\n")
	if body == "" {
		return &QueryError{Message: "query rejected: empty statement"}
	}
	if strings.Contains(body, ";") {
		return &QueryError{Message: "query rejected: only a single statement is allowed"}
	}

	words := sqlWords(body)
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH") {
		return &QueryError{Message: "query rejected: only SELECT or WITH statements are allowed"}
	}
	for _, w := range words {
		if _, bad := forbiddenKeywords[w]; bad {
			return &QueryError{Message: fmt.Sprintf("query rejected: %s is not allowed in a read-only query", w)}
		}
	}
	return nil
}

// stripLiterals replaces string literals, quoted identifiers and comments
// with spaces so their contents never match as keywords or separators.
func stripLiterals(query string, rules lexRules) (string, error) {
	var b strings.Builder
	b.Grow(len(query))
	unterminated := &QueryError{Message: "query rejected: unterminated quoted string"}

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case rules.tripleQuotes && (c == '\'' || c == '"') && strings.HasPrefix(query[i:], strings.Repeat(string(c), 3)):
			end := closingTriple(query, i+3, c, rules.backslash)
			if end < 0 {
				return "", unterminated
			}
			b.WriteByte(' ')
			i = end
		case c == '\'' || c == '"' || c == '`' && rules.backticks:
			backslash := rules.backslash ||
				(rules.escapePrefix && c == '\'' && hasEscapePrefix(query, i))
			end := closingQuote(query, i+1, c, backslash, rules.doubled)
			if end < 0 {
				return "", unterminated
			}
			b.WriteByte(' ')
			i = end
		case c == '$' && rules.dollarQuotes && (i == 0 || !isIdentByte(query[i-1])):
			tag, ok := dollarTag(query, i)
			if !ok {
				b.WriteByte(c)
				continue
			}
			end := strings.Index(query[i+len(tag):], tag)
			if end < 0 {
				return "", unterminated
			}
			b.WriteByte(' ')
			i = i + len(tag) + end + len(tag) - 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-',
			c == '#' && rules.hashComments:
			for i < len(query) && query[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return "", &QueryError{Message: "query rejected: unterminated comment"}
			}
			b.WriteByte(' ')
			i = i + 2 + end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// closingQuote returns the index of the quote closing a literal opened just
// before start, or -1.
func closingQuote(s string, start int, quote byte, backslash, doubled bool) int {
	for i := start; i < len(s); i++ {
		switch {
		case backslash && s[i] == '\\':
			i++
		case s[i] == quote:
			if doubled && i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return -1
}

// closingTriple returns the index of the last quote of the closing triple.
func closingTriple(s string, start int, quote byte, backslash bool) int {
	closing := strings.Repeat(string(quote), 3)
	for i := start; i < len(s); i++ {
		if backslash && s[i] == '\\' {
			i++
			continue
		}
		if strings.HasPrefix(s[i:], closing) {
			return i + 2
		}
	}
	return -1
}

// hasEscapePrefix reports whether the quote at i opens an E'...' literal.
func hasEscapePrefix(s string, i int) bool {
	if i == 0 || (s[i-1] != 'E' && s[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(s[i-2])
}

// dollarTag returns the $tag$ opening at i. $1 style parameters are not tags.
func dollarTag(s string, i int) (string, bool) {
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return "", false
	}
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return "", false
	}
	return s[i : j+1], true
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func sqlWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		words = append(words, strings.ToUpper(f))
	}
	return words
}
