// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

package dnet

import (
	"bufio"
	"errors"
	"io"
)

// MaxFrameSize caps a single frame at 16 MiB; exceeding it is a protocol
// error that closes the connection.
const MaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned by FrameReader.ReadMessage when a
// newline-terminated inbound frame, read in full, exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("dnet: frame exceeds maximum size")

// FrameReader is a streaming newline-delimited JSON frame decoder. It scans
// the inbound buffer for the next 0x0A, parses the preceding bytes as one
// DMessage, and resumes scanning from a saved cursor on the next call so a
// partial frame spanning multiple reads is never re-scanned from zero.
type FrameReader struct {
	r   *bufio.Reader
}

// NewFrameReader wraps any io.Reader (typically a net.Conn) in a frame
// decoder.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadMessage blocks until one full frame has been read and parsed, or
// returns an error (io.EOF on clean close, ErrFrameTooLarge on an oversize
// frame, or a JSON decode error on a malformed frame).
func (f *FrameReader) ReadMessage() (DMessage, error) {
	line, err := f.r.ReadBytes('\n')
	if err != nil {
		if len(line) > 0 && err == io.EOF {
			// Partial trailing frame with no terminator: treat as a
			// decode error, not a clean EOF, so the caller closes the
			// connection rather than silently dropping data.
			return DMessage{}, errors.New("dnet: truncated frame at EOF")
		}
		return DMessage{}, err
	}
	if len(line) > MaxFrameSize {
		return DMessage{}, ErrFrameTooLarge
	}
	// Drop the trailing newline before parsing.
	return unmarshalFrame(line[:len(line)-1])
}

// FrameWriter is a streaming newline-delimited JSON frame encoder.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps any io.Writer (typically a net.Conn) in a frame
// encoder.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteMessage serializes and writes one frame followed by a single 0x0A.
func (f *FrameWriter) WriteMessage(m DMessage) error {
	b, err := marshalFrame(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.w.Write(b)
	return err
}
