package keys

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/udisondev/pagelock/internal/constants"
)

type resolverOptions struct {
	timeout     time.Duration
	userAgent   string
	rnd         io.Reader
	now         func() time.Time
	deobfuscate func(string) (string, error)
}

func defaultResolverOptions() resolverOptions {
	return resolverOptions{
		timeout:     constants.KeyFetchTimeout,
		rnd:         rand.Reader,
		now:         time.Now,
		deobfuscate: func(s string) (string, error) { return s, nil },
	}
}

// Option configures a resolver.
type Option func(*resolverOptions)

// WithTimeout bounds every auxiliary request.
func WithTimeout(d time.Duration) Option {
	return func(o *resolverOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent of auxiliary requests.
func WithUserAgent(ua string) Option {
	return func(o *resolverOptions) {
		o.userAgent = ua
	}
}

// WithRandom replaces the randomness source of shared key generation (tests).
func WithRandom(r io.Reader) Option {
	return func(o *resolverOptions) {
		if r != nil {
			o.rnd = r
		}
	}
}

// WithClock replaces the clock used for dmytime parameters (tests).
func WithClock(now func() time.Time) Option {
	return func(o *resolverOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDeobfuscator installs the script deobfuscation step. Identity by default.
func WithDeobfuscator(fn func(string) (string, error)) Option {
	return func(o *resolverOptions) {
		if fn != nil {
			o.deobfuscate = fn
		}
	}
}

func applyOptions(opts []Option) resolverOptions {
	o := defaultResolverOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
