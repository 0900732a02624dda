package feed

import "bytes"

// DefaultMaxEventBytes caps one SSE line. Longer lines are skipped.
const DefaultMaxEventBytes = 4 << 20

// lineSplitter is a bufio.SplitFunc source that splits on '\n' like
// bufio.ScanLines but consumes lines longer than max instead of failing the
// scan with bufio.ErrTooLong. The scanner buffer must allow more than max
// bytes so an overlong line is seen before the buffer fills.
type lineSplitter struct {
	max      int
	skipping bool
	dropped  int
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		if s.skipping || i > s.max {
			s.skipping = false
			s.dropped++
			return i + 1, nil, nil
		}
		return i + 1, dropCR(data[:i]), nil
	}
	if atEOF {
		if s.skipping || len(data) > s.max {
			s.skipping = false
			s.dropped++
			return len(data), nil, nil
		}
		return len(data), dropCR(data), nil
	}
	if len(data) > s.max {
		// Discard what we have and keep discarding up to the next newline.
		s.skipping = true
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func dropCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
