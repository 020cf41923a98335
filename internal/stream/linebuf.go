package stream

import "bytes"

// LineBuffer assembles complete lines out of arbitrarily split chunks.
// A trailing partial line is held back until its terminator arrives.
type LineBuffer struct {
	pending []byte
}

// Push appends chunk and returns every line completed by it, without the
// trailing "\n" or "\r\n".
func (b *LineBuffer) Push(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		line := b.pending[:i]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		lines = append(lines, string(line))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Flush returns the buffered remainder as a final line, if any.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(b.pending, []byte{'\r'}))
	b.pending = nil
	return line, true
}
