package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"loginsight/internal/decode"
	"loginsight/internal/errors"
	"loginsight/internal/model"
)

const (
	sampleSize = 64 << 10
	readSize   = 256 << 10
)

// TailState is the live-tail bookkeeping of one source. Only the Monitor
// mutates it once tailing starts.
type TailState struct {
	Offset     int64 // first byte not yet turned into a line
	Size       int64 // size at the last poll
	Generation int   // incremented on every detected rotation
	Lines      int   // physical lines emitted in this generation
	Encoding   decode.Encoding
}

// Degraded reports that some line of the source needed lossy decoding.
func (s TailState) Degraded() bool { return s.Encoding == decode.Lossy }

// ReadOptions controls a one-shot read.
type ReadOptions struct {
	// HoldPartial keeps a final unterminated line back so a following
	// Monitor can complete it; otherwise it is emitted as the last line.
	HoldPartial bool
}

// ReadFile streams the decoded lines of src once and returns the state a
// Monitor needs to continue from where the read stopped.
func ReadFile(ctx context.Context, src Source, norm *decode.Normalizer, opt ReadOptions, emit func(model.RawLine)) (TailState, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return TailState{}, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return TailState{}, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}

	br := bufio.NewReaderSize(f, sampleSize)
	sample, _ := br.Peek(sampleSize)
	enc, err := norm.Sniff(sample)
	if err != nil {
		return TailState{}, fmt.Errorf("%s: %w", src.Path, err)
	}
	sp := newSplitter(src.ID, norm.NewDecoder(enc), 0, 0)

	var read int64
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return TailState{}, err
		}
		n, rerr := br.Read(buf)
		if n > 0 {
			read += int64(n)
			sp.feed(buf[:n], emit)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return TailState{}, fmt.Errorf("%w: %s: %w", errors.ErrIO, src.Path, rerr)
		}
	}
	if !opt.HoldPartial {
		sp.flush(emit)
	}
	size := fi.Size()
	if read > size {
		size = read
	}
	return TailState{Offset: sp.pendingOffset(), Size: size, Lines: sp.lines, Encoding: sp.dec.Encoding()}, nil
}

// Head returns the text of up to n leading lines of src, read from the first
// sample of the file.
func Head(src Source, norm *decode.Normalizer, n int) ([]string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	defer f.Close()

	buf := make([]byte, sampleSize)
	k, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrIO, src.Path, err)
	}
	buf = buf[:k]
	enc, err := norm.Sniff(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	var out []string
	keep := func(l model.RawLine) {
		if len(out) < n {
			out = append(out, l.Text)
		}
	}
	sp := newSplitter(src.ID, norm.NewDecoder(enc), 0, 0)
	sp.feed(buf, keep)
	if k < sampleSize {
		sp.flush(keep)
	}
	return out, nil
}
