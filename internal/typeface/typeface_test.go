// typeface_test.go tests font parsing, spec resolution (builtin, path,
// search dirs, Google Fonts via a local server) and text measurement.

package typeface

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func goFont(t *testing.T) *Font {
	t.Helper()
	f, err := Parse(goregular.TTF)
	require.NoError(t, err)
	return f
}

func TestParse(t *testing.T) {
	f, err := Parse(goregular.TTF)
	require.NoError(t, err)
	assert.Greater(t, f.NumGlyphs(), 100)
	assert.Greater(t, f.UnitsPerEm(), 0)
	assert.Equal(t, goregular.TTF, f.SFNT())

	_, err = Parse(nil)
	assert.Error(t, err)
	_, err = Parse([]byte("definitely not a font file"))
	assert.Error(t, err)
}

func TestContainer(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{goregular.TTF, "ttf"},
		{[]byte("wOFFxxxx"), "woff"},
		{[]byte("wOF2xxxx"), "woff2"},
		{[]byte("OTTOxxxx"), "otf"},
		{[]byte("ttcfxxxx"), "ttc"},
		{[]byte("GIF89a"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Container(tt.data))
	}
}

func TestIsFontFile(t *testing.T) {
	assert.True(t, IsFontFile("Roboto.TTF"))
	assert.True(t, IsFontFile("a/b/inter.woff2"))
	assert.False(t, IsFontFile("names.csv"))
}

func TestNewFaceRejectsBadSize(t *testing.T) {
	f := goFont(t)
	for _, size := range []float64{0, -12} {
		_, err := f.NewFace(size)
		assert.Error(t, err, "size %g", size)
	}
}

func TestMeasureEmptyString(t *testing.T) {
	f := goFont(t)
	for _, size := range []float64{8, 12, 48, 96.5} {
		face, err := f.NewFace(size)
		require.NoError(t, err)
		fm := face.Metrics()

		m := Measure(face, "")
		assert.Zero(t, m.Width, "size %g", size)
		assert.Equal(t, toFloat(fm.Ascent+fm.Descent), m.Height, "size %g", size)
		assert.Greater(t, m.Height, 0.0)
		assert.Equal(t, toFloat(fm.Ascent), m.Ascent)
		face.Close()
	}
}

func TestMeasureGrowsWithText(t *testing.T) {
	face, err := goFont(t).NewFace(48)
	require.NoError(t, err)
	defer face.Close()

	short := Measure(face, "Bob")
	long := Measure(face, "Bob Smith")
	assert.Greater(t, short.Width, 0.0)
	assert.Greater(t, long.Width, short.Width)
	assert.Equal(t, short.Height, long.Height)
}

func TestMeasureScalesWithSize(t *testing.T) {
	f := goFont(t)
	small, _ := f.NewFace(12)
	big, _ := f.NewFace(48)
	defer small.Close()
	defer big.Close()

	assert.Greater(t, Measure(big, "Alice").Width, Measure(small, "Alice").Width)
	assert.Greater(t, Measure(big, "").Height, Measure(small, "").Height)
}

func TestMeasureMissingGlyphUsesNotdef(t *testing.T) {
	f := goFont(t)
	face, err := f.NewFace(32)
	require.NoError(t, err)
	defer face.Close()

	// Neither emoji is in Go Regular; both fall back to .notdef.
	a := Measure(face, "\U0001F600")
	b := Measure(face, "\U0001F601")
	assert.Equal(t, a.Width, b.Width)
	assert.Equal(t, []rune{'\U0001F600', '\U0001F601'}, f.Missing("a\U0001F600b\U0001F601\U0001F600"))
	assert.Empty(t, f.Missing("Alice Johnson"))
}

func TestLoadBuiltin(t *testing.T) {
	for _, name := range BuiltinNames() {
		f, err := Load("builtin:"+name, LoadOptions{})
		require.NoError(t, err, name)
		assert.Equal(t, "builtin:"+name, f.Source)
		assert.Greater(t, f.NumGlyphs(), 0)
	}

	_, err := Load("builtin:comicsans", LoadOptions{})
	assert.ErrorContains(t, err, "unknown builtin font")
	_, err = Load("  ", LoadOptions{})
	assert.Error(t, err)
}

func TestLoadPathAndSearchDirs(t *testing.T) {
	dir := t.TempDir()
	fontPath := filepath.Join(dir, "Regular.ttf")
	require.NoError(t, os.WriteFile(fontPath, goregular.TTF, 0o644))

	f, err := Load(fontPath, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, fontPath, f.Source)

	f, err = Load("Regular.ttf", LoadOptions{SearchDirs: []string{t.TempDir(), dir}})
	require.NoError(t, err)
	assert.Equal(t, fontPath, f.Source)

	_, err = Load("Missing.ttf", LoadOptions{SearchDirs: []string{dir}})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(dir, LoadOptions{})
	assert.ErrorContains(t, err, "directory")
}

func TestParseGoogleSpec(t *testing.T) {
	tests := []struct {
		spec           string
		family, weight string
		ok             bool
	}{
		{"google:Inter:800", "Inter", "800", true},
		{"google:Open Sans:400", "Open Sans", "400", true},
		{"google:Inter", "", "", false},
		{"google::400", "", "", false},
		{"builtin:goregular", "", "", false},
	}
	for _, tt := range tests {
		family, weight, ok := ParseGoogleSpec(tt.spec)
		assert.Equal(t, tt.ok, ok, tt.spec)
		assert.Equal(t, tt.family, family, tt.spec)
		assert.Equal(t, tt.weight, weight, tt.spec)
	}
}

func TestLoadGoogleCaches(t *testing.T) {
	var cssHits, fontHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	mux.HandleFunc("/css2", func(w http.ResponseWriter, r *http.Request) {
		cssHits.Add(1)
		assert.Equal(t, "Go Regular:wght@400", r.URL.Query().Get("family"))
		fmt.Fprintf(w, "@font-face {\n  src: url(%s/s/go/regular.ttf) format('truetype');\n}\n", srv.URL)
	})
	mux.HandleFunc("/s/go/regular.ttf", func(w http.ResponseWriter, r *http.Request) {
		fontHits.Add(1)
		w.Write(goregular.TTF)
	})
	defer srv.Close()

	opts := LoadOptions{CacheDir: filepath.Join(t.TempDir(), "cache"), GoogleCSSURL: srv.URL + "/css2"}
	f, err := Load("google:Go Regular:400", opts)
	require.NoError(t, err)
	assert.Equal(t, "google:Go Regular:400", f.Source)
	assert.FileExists(t, filepath.Join(opts.CacheDir, "Go_Regular-400.ttf"))

	_, err = Load("google:Go Regular:400", opts)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cssHits.Load())
	assert.EqualValues(t, 1, fontHits.Load())
}

func TestLoadGoogleErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("family") == "Nope:wght@400" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("@font-face { font-family: 'Empty'; }"))
	}))
	defer srv.Close()

	opts := LoadOptions{GoogleCSSURL: srv.URL}
	_, err := Load("google:Nope:400", opts)
	assert.ErrorContains(t, err, "status 404")
	_, err = Load("google:Empty:400", opts)
	assert.ErrorContains(t, err, "no font URL")
	_, err = Load("google:bad", opts)
	assert.ErrorContains(t, err, "invalid google font spec")
}
