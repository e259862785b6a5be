// Package decode normalizes raw log bytes to UTF-8. Every line is tried as
// UTF-8 first, then as the configured legacy encoding, and is decoded lossily
// only when neither validates. The file records the widest encoding any of
// its lines needed, so a lossy line flags the whole file as degraded.
package decode

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"

	"loginsight/internal/errors"
)

type Encoding int

const (
	UTF8 Encoding = iota
	Legacy
	Lossy
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case Legacy:
		return "legacy"
	default:
		return "lossy"
	}
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Normalizer holds the legacy candidate encoding. It is safe for concurrent
// use; per-file state lives in Decoder.
type Normalizer struct {
	legacy     encoding.Encoding
	legacyName string
}

// New resolves the legacy candidate by its WHATWG label. Only encodings that
// keep ASCII bytes intact are accepted, since lines are split on raw '\n'.
func New(legacy string) (*Normalizer, error) {
	if legacy == "" || strings.EqualFold(legacy, "gb18030") {
		return &Normalizer{legacy: simplifiedchinese.GB18030, legacyName: "gb18030"}, nil
	}
	enc, err := htmlindex.Get(legacy)
	if err != nil {
		return nil, fmt.Errorf("%w: legacy encoding %q: %w", errors.ErrEncoding, legacy, err)
	}
	name, _ := htmlindex.Name(enc)
	if strings.HasPrefix(name, "utf-16") {
		return nil, fmt.Errorf("%w: legacy encoding %q is not ASCII compatible", errors.ErrEncoding, legacy)
	}
	return &Normalizer{legacy: enc, legacyName: name}, nil
}

func (n *Normalizer) LegacyName() string { return n.legacyName }

// Sniff picks the starting encoding for a file from a leading sample.
// UTF-16 input is rejected because lines are split on a single '\n' byte.
func (n *Normalizer) Sniff(sample []byte) (Encoding, error) {
	if looksUTF16(sample) {
		return Lossy, fmt.Errorf("%w: utf-16 input is not supported", errors.ErrEncoding)
	}
	sample = bytes.TrimPrefix(sample, bom)
	if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i+1]
	} else {
		sample = trimPartialRune(sample)
	}
	if utf8.Valid(sample) {
		return UTF8, nil
	}
	if n.clean(sample) != nil {
		return Legacy, nil
	}
	return Lossy, nil
}

// clean decodes b with the legacy encoding, or returns nil when the result
// needed replacement characters.
func (n *Normalizer) clean(b []byte) []byte {
	out, err := n.legacy.NewDecoder().Bytes(b)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return nil
	}
	return out
}

// looksUTF16 spots a UTF-16 byte order mark, or the NUL bytes that every
// other position of UTF-16 encoded ASCII carries.
func looksUTF16(b []byte) bool {
	if bytes.HasPrefix(b, []byte{0xFF, 0xFE}) || bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		return true
	}
	if len(b) > 1024 {
		b = b[:1024]
	}
	if len(b) < 8 {
		return false
	}
	var zeros [2]int
	for i, c := range b {
		if c == 0 {
			zeros[i%2]++
		}
	}
	half := len(b) / 2
	return zeros[0]*5 > half*2 || zeros[1]*5 > half*2
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by the sample end.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= 3 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// Decoder converts the lines of one file. Not safe for concurrent use.
type Decoder struct {
	enc     Encoding
	dec     *encoding.Decoder
	started bool
}

// NewDecoder starts a file at enc, usually the Sniff result or the encoding
// recorded when an earlier read stopped.
func (n *Normalizer) NewDecoder(enc Encoding) *Decoder {
	return &Decoder{enc: enc, dec: n.legacy.NewDecoder()}
}

// Encoding is the widest encoding the file has needed so far.
func (d *Decoder) Encoding() Encoding { return d.enc }

// Degraded reports whether any line so far was decoded lossily.
func (d *Decoder) Degraded() bool { return d.enc == Lossy }

// Line decodes one physical line. degraded reports that some bytes could
// not be represented and were replaced with U+FFFD.
func (d *Decoder) Line(b []byte) (text string, degraded bool) {
	if !d.started {
		d.started = true
		b = bytes.TrimPrefix(b, bom)
	}
	if utf8.Valid(b) {
		return string(b), false
	}
	if out, err := d.dec.Bytes(b); err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		d.widen(Legacy)
		return string(out), false
	}
	d.widen(Lossy)
	return strings.ToValidUTF8(string(b), string(utf8.RuneError)), true
}

func (d *Decoder) widen(enc Encoding) {
	if enc > d.enc {
		d.enc = enc
	}
}
