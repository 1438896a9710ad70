package stream

import "bytes"

// Splitter owns the pending buffer of a single stream. Each Push appends a
// transport chunk and returns every line completed by it; the unterminated
// remainder stays buffered until a later chunk completes it.
type Splitter struct {
	delim   byte
	max     int
	pending []byte
}

// NewSplitter returns a Splitter for the given framing.
func NewSplitter(f Framing) *Splitter {
	f = f.withDefaults()
	return &Splitter{
		delim: f.Delimiter,
		max:   f.MaxPending,
	}
}

// Push appends chunk to the pending buffer and returns the complete lines,
// without delimiters, in arrival order. The element after the last delimiter
// is always kept as the new pending buffer, even when it is empty.
func (s *Splitter) Push(chunk []byte) ([][]byte, error) {
	s.pending = append(s.pending, chunk...)

	last := bytes.LastIndexByte(s.pending, s.delim)
	if last < 0 {
		if len(s.pending) > s.max {
			return nil, ErrRecordTooLarge
		}
		return nil, nil
	}

	complete := bytes.Clone(s.pending[:last])
	s.pending = append(s.pending[:0], s.pending[last+1:]...)

	lines := bytes.Split(complete, []byte{s.delim})
	if len(s.pending) > s.max {
		return lines, ErrRecordTooLarge
	}
	return lines, nil
}

// Residual returns a copy of the buffered, not yet terminated, tail.
func (s *Splitter) Residual() []byte {
	return bytes.Clone(s.pending)
}

// Reset drops the pending buffer.
func (s *Splitter) Reset() {
	s.pending = s.pending[:0]
}
