package keys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

// fixtureSharedKeyFromSeq is GenerateSharedKey(fixtureCID) over bytes 0..15.
const fixtureSharedKeyFromSeq = "AuBXCtDUEsFSGnHXI2JeK3LjMzNcO2Pt"

func contentInfoServer(t *testing.T, hits *atomic.Int32, result int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "/bibGetCntntInfo.php", r.URL.Path)
		assert.Equal(t, fixtureCID, q.Get("cid"))
		assert.Equal(t, fixtureSharedKeyFromSeq, q.Get("k"))
		assert.Equal(t, "1700000000000", q.Get("dmytime"))
		assert.Equal(t, "u0value", q.Get("u0"), "existing query parameters must be kept")
		assert.Equal(t, "pagelock-test", r.Header.Get("User-Agent"))

		ptbl := `["t0","t1","t2","t3","t4","t5","t6","t7"]`
		ctbl := `["c0","c1","c2","c3","c4","c5","c6","c7"]`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": result,
			"items": []map[string]any{{
				"ContentID": fixtureCID,
				"ptbl":      obfuscateTable(fixtureCID, fixtureSharedKeyFromSeq, ptbl),
				"ctbl":      obfuscateTable(fixtureCID, fixtureSharedKeyFromSeq, ctbl),
			}},
		})
	}))
}

func newTestTableResolver(srv *httptest.Server) *TableResolver {
	return NewTableResolver(srv.Client(), NewCache[model.ChapterKeys](0, nil),
		WithRandom(bytes.NewReader(sequentialBytes(16))),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithUserAgent("pagelock-test"),
		WithTimeout(5*time.Second),
	)
}

func TestTableResolver_Resolve(t *testing.T) {
	var hits atomic.Int32
	srv := contentInfoServer(t, &hits, 1)
	defer srv.Close()

	r := newTestTableResolver(srv)
	infoURL := srv.URL + "/bibGetCntntInfo.php?u0=u0value"

	s, u, err := r.Resolve(context.Background(), fixtureCID, infoURL, "pages/0001/img_0003.jpg")
	require.NoError(t, err)
	assert.Equal(t, "t6", s)
	assert.Equal(t, "c0", u)

	// второй кадр той же главы берётся из кэша; источник случайности уже исчерпан
	s, u, err = r.Resolve(context.Background(), fixtureCID, infoURL, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "t2", s)
	assert.Equal(t, "c6", u)

	assert.Equal(t, int32(1), hits.Load())
}

func TestTableResolver_BadResult(t *testing.T) {
	var hits atomic.Int32
	srv := contentInfoServer(t, &hits, 0)
	defer srv.Close()

	_, _, err := newTestTableResolver(srv).Resolve(context.Background(), fixtureCID, srv.URL+"/bibGetCntntInfo.php?u0=u0value", "a.jpg")
	assert.ErrorIs(t, err, ErrKeyResolution)
}

func TestTableResolver_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"no items", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":1,"items":[]}`))
		}},
		{"table not json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":1,"items":[{"ptbl":"garbage","ctbl":"garbage"}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			r := NewTableResolver(srv.Client(), NewCache[model.ChapterKeys](0, nil))
			_, _, err := r.Resolve(context.Background(), fixtureCID, srv.URL+"/info", "a.jpg")
			assert.ErrorIs(t, err, ErrKeyResolution)
		})
	}
}

func TestTableResolver_InvalidInput(t *testing.T) {
	r := NewTableResolver(nil, NewCache[model.ChapterKeys](0, nil))

	_, _, err := r.Resolve(context.Background(), "", "https://reader.example/info", "a.jpg")
	assert.ErrorIs(t, err, ErrKeyResolution)

	_, _, err = r.Resolve(context.Background(), fixtureCID, "not a url", "a.jpg")
	assert.ErrorIs(t, err, ErrKeyResolution)
}

func TestTableResolver_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewTableResolver(srv.Client(), NewCache[model.ChapterKeys](0, nil), WithTimeout(50*time.Millisecond))
	_, _, err := r.Resolve(context.Background(), fixtureCID, srv.URL+"/info", "a.jpg")
	assert.ErrorIs(t, err, ErrKeyResolution)
}

const readerScript = `
var a = image_info.keyType;
if (a == "1" && (k = "abcdEFGH12345678")) {}
else if (a=='2'&&(k='ZYXWvuts98765432')) {}
`

func scriptServer(t *testing.T, hits *atomic.Int32, body *atomic.Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/js/manga.read.js", r.URL.Path)
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
}

func TestExtractKeyMapping(t *testing.T) {
	got := ExtractKeyMapping(readerScript)
	assert.Equal(t, model.KeyMapping{"1": "abcdEFGH12345678", "2": "ZYXWvuts98765432"}, got)
	assert.Empty(t, ExtractKeyMapping("var x = 1;"))
}

func TestScriptResolver_Key(t *testing.T) {
	var hits atomic.Int32
	var body atomic.Value
	body.Store(readerScript)
	srv := scriptServer(t, &hits, &body)
	defer srv.Close()

	r, err := NewScriptResolver(srv.Client(), srv.URL+"/js/manga.read.js", NewCache[model.KeyMapping](0, nil))
	require.NoError(t, err)

	key, err := r.Key(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "ZYXWvuts98765432", key)

	key, err = r.Key(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "abcdEFGH12345678", key)
	assert.Equal(t, int32(1), hits.Load())

	_, err = r.Key(context.Background(), "7")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, ErrKeyResolution)
}

func TestScriptResolver_Refresh(t *testing.T) {
	var hits atomic.Int32
	var body atomic.Value
	body.Store(readerScript)
	srv := scriptServer(t, &hits, &body)
	defer srv.Close()

	r, err := NewScriptResolver(srv.Client(), srv.URL+"/js/manga.read.js", NewCache[model.KeyMapping](0, nil))
	require.NoError(t, err)

	_, err = r.Key(context.Background(), "1")
	require.NoError(t, err)

	body.Store(`if (t == "3" && (k = "rotatedKey123456")) {}`)
	require.NoError(t, r.Refresh(context.Background()))

	key, err := r.Key(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "rotatedKey123456", key)
	assert.Equal(t, int32(2), hits.Load())
}

func TestScriptResolver_Deobfuscator(t *testing.T) {
	var hits atomic.Int32
	var body atomic.Value
	body.Store(strings.ReplaceAll(readerScript, "&&", "@@"))
	srv := scriptServer(t, &hits, &body)
	defer srv.Close()

	r, err := NewScriptResolver(srv.Client(), srv.URL+"/js/manga.read.js", NewCache[model.KeyMapping](0, nil),
		WithDeobfuscator(func(s string) (string, error) {
			return strings.ReplaceAll(s, "@@", "&&"), nil
		}))
	require.NoError(t, err)

	mapping, err := r.Mapping(context.Background())
	require.NoError(t, err)
	assert.Len(t, mapping, 2)
}

func TestScriptResolver_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		deobfs func(string) (string, error)
	}{
		{"no mapping", "console.log('nothing here')", nil},
		{"deobfuscation failed", readerScript, func(string) (string, error) { return "", errors.New("packed script") }},
		{"oversized script", readerScript + strings.Repeat(" ", constants.MaxKeyResponseBytes), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			var body atomic.Value
			body.Store(tt.body)
			srv := scriptServer(t, &hits, &body)
			defer srv.Close()

			r, err := NewScriptResolver(srv.Client(), srv.URL+"/js/manga.read.js", NewCache[model.KeyMapping](0, nil),
				WithDeobfuscator(tt.deobfs))
			require.NoError(t, err)

			_, err = r.Key(context.Background(), "1")
			assert.ErrorIs(t, err, ErrKeyResolution)
		})
	}

	_, err := NewScriptResolver(nil, "/relative/only.js", NewCache[model.KeyMapping](0, nil))
	assert.Error(t, err)
}
