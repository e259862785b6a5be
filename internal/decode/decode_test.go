package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"loginsight/internal/errors"
)

func gb(t *testing.T, s string) []byte {
	t.Helper()
	out, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func TestSniff(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		sample []byte
		want   Encoding
	}{
		{"ascii", []byte("2024-01-01 INFO ok\n"), UTF8},
		{"utf8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("héllo\n")...), UTF8},
		{"utf8 cut mid rune", []byte("abc \xe4\xb8"), UTF8},
		{"gb18030", gb(t, "错误: 连接失败\n"), Legacy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Sniff(tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSniffRejectsUTF16(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)

	for name, sample := range map[string][]byte{
		"le bom": {0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0},
		"be bom": {0xFE, 0xFF, 0, 'h', 0, 'i', 0, '\n'},
		"no bom": []byte("2\x000\x002\x004\x00 \x00I\x00N\x00F\x00O\x00\n\x00"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.Sniff(sample)
			assert.ErrorIs(t, err, errors.ErrEncoding)
		})
	}
}

func TestDecoderFallsBackPerLine(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)

	d := n.NewDecoder(UTF8)
	text, degraded := d.Line([]byte("2024-01-01 10:00:00 INFO [main] starting"))
	assert.Equal(t, "2024-01-01 10:00:00 INFO [main] starting", text)
	assert.False(t, degraded)
	assert.Equal(t, UTF8, d.Encoding())

	text, degraded = d.Line(gb(t, "2024-01-01 10:00:01 ERROR [main] 连接数据库失败"))
	assert.Equal(t, "2024-01-01 10:00:01 ERROR [main] 连接数据库失败", text)
	assert.False(t, degraded)
	assert.Equal(t, Legacy, d.Encoding())
	assert.False(t, d.Degraded())
}

func TestDecoderLegacyFileKeepsUTF8Lines(t *testing.T) {
	n, err := New("gb18030")
	require.NoError(t, err)
	d := n.NewDecoder(Legacy)

	text, degraded := d.Line([]byte("ok: 数据库"))
	assert.Equal(t, "ok: 数据库", text)
	assert.False(t, degraded)
	assert.Equal(t, Legacy, d.Encoding())
}

func TestDecoderLegacy(t *testing.T) {
	n, err := New("gb18030")
	require.NoError(t, err)
	d := n.NewDecoder(Legacy)

	text, degraded := d.Line(gb(t, "错误 [tid-1] 中文"))
	assert.Equal(t, "错误 [tid-1] 中文", text)
	assert.False(t, degraded)
}

func TestDecoderUTF8StripsBOMOnce(t *testing.T) {
	n, _ := New("")
	d := n.NewDecoder(UTF8)
	first, _ := d.Line([]byte("\xEF\xBB\xBFline one"))
	assert.Equal(t, "line one", first)
	second, _ := d.Line([]byte("\xEF\xBB\xBFkept"))
	assert.Equal(t, "\uFEFFkept", second)
}

func TestDecoderLossy(t *testing.T) {
	n, _ := New("")
	d := n.NewDecoder(UTF8)
	text, degraded := d.Line([]byte("bad \xff byte"))
	assert.True(t, degraded)
	assert.Equal(t, "bad \uFFFD byte", text)

	text, degraded = d.Line([]byte("fine"))
	assert.False(t, degraded)
	assert.Equal(t, "fine", text)
	assert.True(t, d.Degraded(), "one lossy line flags the file")
	assert.Equal(t, Lossy, d.Encoding())
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := New("klingon-8")
	assert.ErrorIs(t, err, errors.ErrEncoding)

	_, err = New("utf-16le")
	assert.ErrorIs(t, err, errors.ErrEncoding)

	n, err := New("windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", n.LegacyName())
}
