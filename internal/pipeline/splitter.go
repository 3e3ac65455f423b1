package pipeline

import (
	"strings"
	"unicode/utf8"
)

// splitter re-segments a stream of reply text deltas into sentences.
//
// A sentence ends at '.', '!' or '?' followed by whitespace, at a newline,
// or at a CJK full-width terminal (。！？), which needs no trailing
// whitespace. Requiring whitespace after the ASCII terminals keeps decimal
// numbers and abbreviations inside one sentence. Splitting is idempotent:
// feeding an already-terminated sentence back through yields the same span.
type splitter struct {
	buf string
}

// push appends delta to the pending buffer and returns all complete
// sentences that can be flushed, in order. Returned sentences include their
// terminal punctuation; surrounding whitespace is trimmed.
func (s *splitter) push(delta string) []string {
	if delta == "" {
		return nil
	}
	s.buf += delta

	var out []string
	for {
		end := sentenceBoundary(s.buf)
		if end < 0 {
			break
		}
		sentence := strings.TrimSpace(s.buf[:end])
		s.buf = strings.TrimLeft(s.buf[end:], " \t\n\r")
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

// flush returns the trailing partial sentence, if any, and resets the
// buffer. Called at stream end so text without terminal punctuation is still
// synthesized.
func (s *splitter) flush() string {
	rest := strings.TrimSpace(s.buf)
	s.buf = ""
	return rest
}

// pending reports whether un-flushed text remains.
func (s *splitter) pending() bool {
	return strings.TrimSpace(s.buf) != ""
}

// sentenceBoundary returns the end index (exclusive) of the first complete
// sentence in s, or -1 if none can be delimited yet. The index includes the
// terminal punctuation except for a bare newline, which delimits but is not
// part of the sentence.
func sentenceBoundary(s string) int {
	for i, r := range s {
		switch r {
		case '\n':
			return i
		case '.', '!', '?':
			if i+1 < len(s) {
				switch s[i+1] {
				case ' ', '\t', '\n', '\r':
					return i + 1
				}
			}
		case '。', '！', '？':
			return i + utf8.RuneLen(r)
		}
	}
	return -1
}
