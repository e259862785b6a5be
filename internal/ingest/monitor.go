package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"loginsight/internal/decode"
	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/util/logx"
)

// Batch is the set of new lines found for one source in one poll.
type Batch struct {
	SourceID   int
	Generation int
	// Rotated is set when the source shrank or was replaced since the last
	// poll. Lines then start at offset 0 of the new generation.
	Rotated bool
	Lines   []model.RawLine
	// Encoding is the widest encoding the source has needed so far.
	Encoding decode.Encoding
	// Err reports a source that cannot be decoded at all. It is skipped
	// until it rotates.
	Err error
}

type tracked struct {
	src     Source
	state   TailState
	readPos int64 // bytes read from the file, including a held partial line
	split   *splitter
	info    os.FileInfo
	missing bool
	skip    bool // undecodable, ignored until rotation
}

// Monitor polls growing files and pushes new lines as batches. It never
// touches the record index; a single consumer drains Batches.
type Monitor struct {
	norm     *decode.Normalizer
	interval time.Duration
	files    []*tracked
	byPath   map[string]*tracked
	out      chan Batch
	log      zerolog.Logger
}

// NewMonitor prepares tailing for sources. start holds the state returned by
// ReadFile for sources that were read before; others start at offset 0.
func NewMonitor(norm *decode.Normalizer, interval time.Duration, sources []Source, start map[int]TailState) *Monitor {
	m := &Monitor{
		norm:     norm,
		interval: interval,
		byPath:   make(map[string]*tracked),
		out:      make(chan Batch, 64),
		log:      logx.Component("tail"),
	}
	for _, src := range sources {
		t := &tracked{src: src}
		if st, ok := start[src.ID]; ok {
			t.state = st
			t.readPos = st.Offset
			t.split = newSplitter(src.ID, norm.NewDecoder(st.Encoding), st.Offset, st.Lines)
			t.info, _ = os.Stat(src.Path)
		}
		m.files = append(m.files, t)
		m.byPath[filepath.Clean(src.Path)] = t
	}
	return m
}

func (m *Monitor) Batches() <-chan Batch { return m.out }

// State returns the tail state of a source. Only meaningful after Run has
// returned or from the goroutine running polls.
func (m *Monitor) State(sourceID int) TailState {
	for _, t := range m.files {
		if t.src.ID == sourceID {
			return t.state
		}
	}
	return TailState{}
}

// Run polls every source each interval, and early when fsnotify reports a
// change. It closes Batches when ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.out)

	events, stop := m.watch()
	defer stop()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.pollAll(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if t, found := m.byPath[filepath.Clean(ev.Name)]; found {
				m.poll(ctx, t)
			}
		}
	}
}

// watch subscribes to the parent directories of all sources so that a
// recreated file is noticed. Failure leaves the Monitor on polling only.
func (m *Monitor) watch() (<-chan fsnotify.Event, func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.Warn().Err(err).Msg("fsnotify unavailable, polling only")
		return nil, func() {}
	}
	dirs := make(map[string]bool)
	for _, t := range m.files {
		dir := filepath.Dir(t.src.Path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			m.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
		}
	}
	go func() {
		for err := range w.Errors {
			m.log.Debug().Err(err).Msg("watcher error")
		}
	}()
	return w.Events, func() { _ = w.Close() }
}

func (m *Monitor) pollAll(ctx context.Context) {
	for _, t := range m.files {
		if ctx.Err() != nil {
			return
		}
		m.poll(ctx, t)
	}
}

func (m *Monitor) poll(ctx context.Context, t *tracked) {
	m.scan(t, func(b Batch) {
		select {
		case m.out <- b:
		case <-ctx.Done():
		}
	})
}

// scan checks one source for growth or rotation and sends new lines, one
// batch per read chunk. A rotation with nothing to read is sent on its own.
func (m *Monitor) scan(t *tracked, send func(Batch)) {
	fi, err := os.Stat(t.src.Path)
	if err != nil {
		if !t.missing {
			t.missing = true
			m.log.Warn().Err(err).Str("source", t.src.Path).Msg("source vanished, waiting for it to reappear")
		}
		return
	}
	reappeared := t.missing
	if reappeared {
		t.missing = false
		m.log.Info().Str("source", t.src.Path).Msg("source reappeared")
	}

	rotated := false
	replaced := reappeared || (t.info != nil && !os.SameFile(t.info, fi))
	if fi.Size() < t.readPos || replaced {
		m.log.Info().Str("source", t.src.Path).Int64("size", fi.Size()).Int64("offset", t.readPos).Msg("rotation detected")
		t.state.Generation++
		t.state.Offset = 0
		t.state.Lines = 0
		t.state.Encoding = decode.UTF8
		t.readPos = 0
		t.split = nil
		t.skip = false
		rotated = true
	}
	t.info = fi
	t.state.Size = fi.Size()
	if t.skip {
		t.readPos = fi.Size()
		return
	}

	pending := rotated
	emit := func(lines []model.RawLine, err error) {
		send(Batch{
			SourceID:   t.src.ID,
			Generation: t.state.Generation,
			Rotated:    pending,
			Lines:      lines,
			Encoding:   t.state.Encoding,
			Err:        err,
		})
		pending = false
	}
	if fi.Size() > t.readPos {
		if err := m.read(t, fi.Size(), func(lines []model.RawLine) { emit(lines, nil) }); err != nil {
			m.log.Warn().Err(err).Str("source", t.src.Path).Msg("read failed")
			if errors.Is(err, errors.ErrEncoding) {
				emit(nil, err)
			}
		}
	}
	if pending {
		emit(nil, nil)
	}
}

// read consumes the file from readPos up to size in readSize chunks.
func (m *Monitor) read(t *tracked, size int64, emit func([]model.RawLine)) error {
	f, err := os.Open(t.src.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(t.readPos, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, min(readSize, size-t.readPos))
	for t.readPos < size {
		want := min(int64(len(buf)), size-t.readPos)
		n, rerr := f.Read(buf[:want])
		if n > 0 {
			chunk := buf[:n]
			if t.split == nil {
				enc, err := m.norm.Sniff(chunk)
				if err != nil {
					t.skip = true
					t.readPos = size
					return fmt.Errorf("%s: %w", t.src.Path, err)
				}
				t.split = newSplitter(t.src.ID, m.norm.NewDecoder(enc), 0, 0)
			}
			t.readPos += int64(n)
			var lines []model.RawLine
			t.split.feed(chunk, func(l model.RawLine) { lines = append(lines, l) })
			t.state.Offset = t.split.pendingOffset()
			t.state.Lines = t.split.lines
			t.state.Encoding = t.split.dec.Encoding()
			if len(lines) > 0 {
				emit(lines)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
	return nil
}
