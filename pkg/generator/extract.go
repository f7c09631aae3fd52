package generator

import (
	"regexp"
	"strings"
)

var (
	fenceRe = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_-]+[ \t]*\n|\n)?(.*?)```")
	labelRe = regexp.MustCompile(`(?im)^\s*(?:cypher(?:\s+query)?|query)\s*:\s*`)
	// leadRe matches an upper case statement at the very start of the text.
	leadRe = regexp.MustCompile(`^(?:OPTIONAL\s+MATCH|MATCH|WITH|UNWIND|CALL|CREATE|MERGE|RETURN|SHOW|DROP|LOAD\s+CSV|FOREACH|USE)\b`)
	// lowerLeadRe accepts a leading keyword in any case only when the
	// grammar that must follow it is there too, so "With pleasure!" or
	// "Match found." are read as prose.
	lowerLeadRe = regexp.MustCompile(`(?i)^(?:(?:OPTIONAL\s+)?MATCH\s*\(|MERGE\s*\(|CREATE\s*\(|CALL\s+[A-Za-z_][\w.]*\s*[({]|UNWIND\s+\S.*?\s+AS\s+\w|RETURN\s+\S.*?\s+AS\s+\w)`)
	// startRe finds a statement inside prose. Only upper case keywords count
	// so that words like "match" or "with" in a sentence are skipped.
	startRe = regexp.MustCompile(`\b(?:OPTIONAL MATCH|MATCH|UNWIND|CALL|CREATE|MERGE|RETURN|LOAD CSV|FOREACH|WITH|SHOW|DROP)\b`)
)

// Extract returns the single Cypher statement contained in an oracle reply.
// It strips code fences, "Cypher:" style labels and surrounding prose, and
// keeps only the first statement when several are separated by ';'.
func Extract(reply string) (string, bool) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return "", false
	}

	fenced := false
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text, fenced = m[1], true
	} else if loc := labelRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}

	text = strings.TrimSpace(text)
	if !leadRe.MatchString(text) && !lowerLeadRe.MatchString(text) {
		loc := startRe.FindStringIndex(text)
		if loc == nil {
			return "", false
		}
		text = text[loc[0]:]
	}

	// Outside a fence a blank line ends the statement; what follows is
	// commentary.
	if i := strings.Index(text, "\n\n"); i >= 0 && !fenced {
		text = text[:i]
	}
	text = strings.TrimSpace(firstStatement(text))
	if text == "" {
		return "", false
	}
	return text, true
}

// firstStatement cuts s at the first ';' outside quotes and comments.
func firstStatement(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return s
			}
			i += nl
		case c == ';':
			return s[:i]
		}
	}
	return s
}
