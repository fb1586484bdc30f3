// Package mention tokenizes user mentions in free text.
//
// Grammar:
//
//	mention := "@" handle | "/u/" handle
//	handle  := word+ (joiner word+)*
//	word    := letter | digit | "_"
//	joiner  := "." | "-"
//
// An "@" mention must not be preceded by a word character (so e-mail
// addresses are not mentions). A handle runs to the first character that is
// neither a word character nor a joiner between word characters, so
// "@alice2" and "@alice-b" never mention "alice" while the trailing dot in
// "@john.doe." is punctuation.
package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Form is the syntactic form of a mention.
type Form int

const (
	// FormAt is "@handle".
	FormAt Form = iota
	// FormPath is "/u/handle", as found in profile links.
	FormPath
)

func (f Form) String() string {
	if f == FormPath {
		return "path"
	}
	return "at"
}

// Token is one mention found in a text.
type Token struct {
	Form   Form
	Handle string
	Offset int
}

const pathPrefix = "/u/"

// Scan returns every mention token in text, in order of appearance.
func Scan(text string) []Token {
	var tokens []Token
	for i := 0; i < len(text); {
		switch {
		case text[i] == '@':
			if i > 0 && isWordBefore(text, i) {
				i++
				continue
			}
			handle, n := readHandle(text[i+1:])
			if n > 0 {
				tokens = append(tokens, Token{Form: FormAt, Handle: handle, Offset: i})
				i += 1 + n
				continue
			}
			i++
		case strings.HasPrefix(text[i:], pathPrefix):
			handle, n := readHandle(text[i+len(pathPrefix):])
			if n > 0 {
				tokens = append(tokens, Token{Form: FormPath, Handle: handle, Offset: i})
				i += len(pathPrefix) + n
				continue
			}
			i += len(pathPrefix)
		default:
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
	}
	return tokens
}

// readHandle consumes a handle from the start of s.
func readHandle(s string) (string, int) {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if isJoiner(r) && n > 0 {
			next, _ := utf8.DecodeRuneInString(s[n+size:])
			if n+size < len(s) && isWord(next) {
				n += size
				continue
			}
			break
		}
		if !isWord(r) {
			break
		}
		n += size
	}
	return s[:n], n
}

func isJoiner(r rune) bool {
	return r == '.' || r == '-'
}

func isWordBefore(text string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWord(r)
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Matcher recognises mentions of one user.
type Matcher struct {
	at   map[string]struct{}
	path map[string]struct{}
}

// NewMatcher builds a matcher for a user identified by username and numeric
// id. The username matches in both forms; the numeric id only in path form.
// Empty values are ignored. Matching is case-insensitive.
func NewMatcher(username, numericID string) *Matcher {
	m := &Matcher{at: map[string]struct{}{}, path: map[string]struct{}{}}
	if h := normalize(username); h != "" {
		m.at[h] = struct{}{}
		m.path[h] = struct{}{}
	}
	if id := normalize(numericID); id != "" && isNumeric(id) {
		m.path[id] = struct{}{}
	}
	return m
}

// Empty reports whether the matcher has no handle to match.
func (m *Matcher) Empty() bool {
	return m == nil || (len(m.at) == 0 && len(m.path) == 0)
}

// Match reports whether text mentions the user at least once.
func (m *Matcher) Match(text string) bool {
	return m.Count(text) > 0
}

// Count returns how many mention tokens in text refer to the user.
func (m *Matcher) Count(text string) int {
	if m.Empty() {
		return 0
	}
	n := 0
	for _, tok := range Scan(text) {
		if m.matches(tok) {
			n++
		}
	}
	return n
}

func (m *Matcher) matches(tok Token) bool {
	h := normalize(tok.Handle)
	switch tok.Form {
	case FormAt:
		_, ok := m.at[h]
		return ok
	case FormPath:
		_, ok := m.path[h]
		return ok
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@")))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
