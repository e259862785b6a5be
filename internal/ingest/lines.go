package ingest

import (
	"bytes"

	"loginsight/internal/decode"
	"loginsight/internal/model"
)

// splitter cuts a byte stream into physical lines. A trailing line without
// its terminator is held back until more bytes arrive or flush is called.
type splitter struct {
	sourceID int
	dec      *decode.Decoder
	partial  []byte
	start    int64 // file offset of partial[0]
	lines    int   // physical lines emitted so far
}

func newSplitter(sourceID int, dec *decode.Decoder, offset int64, lines int) *splitter {
	return &splitter{sourceID: sourceID, dec: dec, start: offset, lines: lines}
}

// feed consumes chunk and emits every completed line.
func (s *splitter) feed(chunk []byte, emit func(model.RawLine)) {
	data := chunk
	if len(s.partial) > 0 {
		s.partial = append(s.partial, chunk...)
		data = s.partial
	}
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		body, term := data[:i], "\n"
		if i > 0 && data[i-1] == '\r' {
			body, term = data[:i-1], "\r\n"
		}
		emit(s.line(body, term))
		s.start += int64(i + 1)
		data = data[i+1:]
	}
	s.partial = append(s.partial[:0:0], data...)
}

// flush emits the held-back partial line, if any, without a terminator.
func (s *splitter) flush(emit func(model.RawLine)) {
	if len(s.partial) == 0 {
		return
	}
	emit(s.line(s.partial, ""))
	s.start += int64(len(s.partial))
	s.partial = nil
}

// pendingOffset is the offset of the first byte not yet emitted.
func (s *splitter) pendingOffset() int64 { return s.start }

func (s *splitter) line(body []byte, term string) model.RawLine {
	s.lines++
	text, degraded := s.dec.Line(body)
	return model.RawLine{
		SourceID:   s.sourceID,
		LineNumber: s.lines,
		Offset:     s.start,
		Text:       text,
		Terminator: term,
		Degraded:   degraded,
	}
}
