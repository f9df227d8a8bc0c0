package batch

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pagelock/internal/crypto"
	"github.com/udisondev/pagelock/internal/intercept"
)

const fakeJPEGHex = "ffd8ffe02066616b65206a706567207061676520627974657320ffd9"

func TestLoadPages(t *testing.T) {
	pages, err := LoadPages(strings.NewReader(`["https://a.example/1.jpg", {"url": "https://a.example/2.jpg", "headers": {"Referer": "https://a.example/"}}]`))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://a.example/1.jpg", pages[0].URL)
	assert.Equal(t, "https://a.example/", pages[1].Headers["Referer"])

	_, err = LoadPages(strings.NewReader(`{"url": "x"}`))
	assert.Error(t, err)
	_, err = LoadPages(strings.NewReader(`[{"headers": {}}]`))
	assert.Error(t, err)
	_, err = LoadPages(strings.NewReader(`[1]`))
	assert.Error(t, err)
}

func TestDownloader_Run(t *testing.T) {
	plain, err := hex.DecodeString(fakeJPEGHex)
	require.NoError(t, err)
	key := []byte{0x11, 0x22}

	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)

		switch r.URL.Path {
		case "/images/fail.jpg":
			http.Error(w, "gone", http.StatusGone)
		case "/images/png.jpg":
			_, _ = w.Write(crypto.XOR([]byte("\x89PNG\r\n\x1a\nrest"), key))
		default:
			assert.Equal(t, "https://reader.example/", r.Header.Get("Referer"))
			_, _ = w.Write(crypto.XOR(plain, key))
		}
	}))
	defer srv.Close()

	client := &http.Client{Transport: intercept.NewTransport(srv.Client().Transport,
		intercept.WithRules(intercept.FragmentXORRule{Prefix: srv.URL}))}

	page := func(name string) Page {
		return Page{
			URL:     srv.URL + "/images/" + name + "?Key-Pair-Id=K#1122",
			Headers: map[string]string{"Referer": "https://reader.example/"},
		}
	}
	pages := []Page{page("1.jpg"), page("2.jpg"), page("fail.jpg"), {URL: srv.URL + "/images/png.jpg?Key-Pair-Id=K#1122"}, page("5.jpg")}

	out := t.TempDir()
	results, err := NewDownloader(client, out, 2, "pagelock-test").Run(context.Background(), pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 3")
	require.Len(t, results, 4)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	got, err := os.ReadFile(filepath.Join(out, "page_001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = os.Stat(filepath.Join(out, "page_004.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "page_003.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloader_RejectsOversizedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\xff\xd8\xff this page is longer than the limit"))
	}))
	defer srv.Close()

	out := t.TempDir()
	d := NewDownloader(srv.Client(), out, 1, "")
	d.maxBody = 16

	results, err := d.Run(context.Background(), []Page{{URL: srv.URL + "/1.jpg"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageTooLarge)
	assert.Empty(t, results)

	_, err = os.Stat(filepath.Join(out, "page_001.jpg"))
	assert.True(t, os.IsNotExist(err), "a truncated page must not be written")
}
