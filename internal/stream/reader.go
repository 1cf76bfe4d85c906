// Package stream provides chunked line-oriented reading of large inputs.
package stream

import (
	"fmt"
	"io"
	"strings"
)

// Chunk is one fixed-byte-size slice of the input, split into complete
// newline-delimited records.
type Chunk struct {
	Index int
	Lines []string
}

// Reader consumes a byte source in fixed-size chunks, tracking the header
// line, a running record count, and a progress fraction. A record split
// across a chunk boundary is carried over and prepended to the next chunk
// before splitting, so boundaries never corrupt records.
//
// Reading is sequential and restartable only from scratch: a mid-stream
// failure surfaces as an error from Next and the whole pass is abandoned.
type Reader struct {
	src       io.Reader
	chunkSize int
	totalSize int64

	header    string
	hasHeader bool
	carry     string
	lineCount int64
	bytesRead int64
	index     int
	done      bool
}

// DefaultChunkSize is the read granularity used when none is configured.
const DefaultChunkSize = 5 * 1024 * 1024

// NewReader creates a chunked reader over src. totalSize (the size hint)
// drives progress reporting; pass 0 when unknown.
func NewReader(src io.Reader, totalSize int64, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{
		src:       src,
		chunkSize: chunkSize,
		totalSize: totalSize,
	}
}

// Next returns the next chunk of complete records, or io.EOF once the
// source is exhausted. Any other error means the pass failed mid-stream.
func (r *Reader) Next() (*Chunk, error) {
	if r.done {
		return nil, io.EOF
	}

	buf := make([]byte, r.chunkSize)
	n, err := io.ReadFull(r.src, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		r.done = true
	} else if err != nil {
		return nil, fmt.Errorf("chunk %d read failed: %w", r.index, err)
	}
	r.bytesRead += int64(n)

	if n == 0 && r.carry == "" {
		return nil, io.EOF
	}

	text := r.carry + string(buf[:n])
	r.carry = ""

	lines := strings.Split(text, "\n")
	if !r.done {
		// The trailing element is (possibly) a partial record; hold it
		// back until the next chunk arrives.
		r.carry = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	} else if len(lines) > 0 && lines[len(lines)-1] == "" {
		// A newline-terminated final record leaves one empty trailer.
		lines = lines[:len(lines)-1]
	}

	if !r.hasHeader && len(lines) > 0 {
		r.header = strings.TrimRight(lines[0], "\r")
		r.hasHeader = true
		lines = lines[1:]
	}

	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	r.lineCount += int64(len(lines))

	chunk := &Chunk{Index: r.index, Lines: lines}
	r.index++

	return chunk, nil
}

// Header returns the header line captured from the very first chunk.
func (r *Reader) Header() string {
	return r.header
}

// LineCount returns the number of record lines seen so far, excluding the
// header. Blank lines count; filtering is the consumer's concern.
func (r *Reader) LineCount() int64 {
	return r.lineCount
}

// Progress returns the fraction of input bytes processed, in [0,1].
// Returns 0 when the total size is unknown.
func (r *Reader) Progress() float64 {
	if r.totalSize <= 0 {
		return 0
	}
	p := float64(r.bytesRead) / float64(r.totalSize)
	if p > 1 {
		p = 1
	}
	return p
}
