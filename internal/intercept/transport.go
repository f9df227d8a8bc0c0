package intercept

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/crypto"
	"github.com/udisondev/pagelock/internal/imaging"
	"github.com/udisondev/pagelock/internal/model"
)

// Transport is an http.RoundTripper that restores scrambled and encrypted page
// images. Requests no rule recognizes go to the base transport untouched.
type Transport struct {
	base       http.RoundTripper
	rules      []Rule
	compositor *imaging.Compositor
	maxBody    int64
}

// Option configures a Transport.
type Option func(*Transport)

// WithRules appends rules. The first matching rule wins.
func WithRules(rules ...Rule) Option {
	return func(t *Transport) {
		t.rules = append(t.rules, rules...)
	}
}

// WithCompositor sets the compositor used for geometry strategies.
func WithCompositor(c *imaging.Compositor) Option {
	return func(t *Transport) {
		if c != nil {
			t.compositor = c
		}
	}
}

// WithMaxBodyBytes limits how much of a recognized response is read.
func WithMaxBodyBytes(n int64) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxBody = n
		}
	}
}

// NewTransport wraps base. nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:       base,
		compositor: &imaging.Compositor{},
		maxBody:    constants.MaxImageBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Match returns the first rule match for req, if any.
func (t *Transport) Match(req *http.Request) (Match, bool) {
	for _, r := range t.rules {
		if m, ok := r.Match(req.URL); ok {
			return m, true
		}
	}
	return Match{}, false
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	m, ok := t.Match(req)
	if !ok {
		slog.Debug("page request", "state", StateUnrecognized, "url", req.URL.Redacted())
		return t.base.RoundTrip(req)
	}

	log := slog.With("rule", m.Rule, "url", m.URL.Redacted())
	log.Debug("page request", "state", StateRecognized, "strategy", m.Strategy.String())

	out := req.Clone(req.Context())
	out.URL = m.URL

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("upstream status, passing through", "state", StateUnrecognized, "status", resp.StatusCode)
		return resp, nil
	}

	body, err := readLimited(resp.Body, t.maxBody)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading page %s: %w", m.URL.Redacted(), err)
	}

	log.Debug("page request", "state", StateKeyResolving)
	spec, err := m.Resolve(req.Context())
	if err != nil {
		return nil, fmt.Errorf("resolving %s key material: %w", m.Rule, err)
	}

	log.Debug("page request", "state", StateTransforming, "strategy", spec.Strategy.String())
	restored, mime, err := t.transform(body, spec, log)
	if err != nil {
		return nil, fmt.Errorf("restoring %s page: %w", m.Rule, err)
	}

	substitute(resp, restored, mime)
	log.Debug("page request", "state", StateSubstituted, "bytes", len(restored), "content_type", mime)
	return resp, nil
}

func (t *Transport) transform(body []byte, spec model.ScrambleSpec, log *slog.Logger) ([]byte, string, error) {
	switch {
	case spec.Strategy.IsGeometry():
		return t.compositor.Restore(body, spec)

	case spec.Strategy == model.StrategyAESCBC:
		plain, err := crypto.DecryptCBC(body, spec.Cipher)
		if err != nil {
			return nil, "", err
		}
		return plain, crypto.SniffMIME(plain), nil

	case spec.Strategy == model.StrategyAESGCM:
		plain, err := crypto.DecryptGCM(body, spec.Cipher)
		if err != nil {
			// Отдаём исходные байты: декодер изображения упадёт явно ниже по цепочке.
			log.Warn("gcm decryption failed, returning original bytes", "error", err)
			return body, crypto.SniffMIME(body), nil
		}
		return plain, crypto.SniffMIME(plain), nil

	case spec.Strategy == model.StrategyXOR:
		plain := crypto.XOR(body, spec.XORKey)
		return plain, crypto.SniffMIME(plain), nil

	default:
		return body, crypto.SniffMIME(body), nil
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func substitute(resp *http.Response, body []byte, mime string) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header = resp.Header.Clone()
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set("Content-Type", mime)
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Del("Content-Encoding")
	resp.Uncompressed = false
}
