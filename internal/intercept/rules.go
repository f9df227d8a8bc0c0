package intercept

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/geometry"
	"github.com/udisondev/pagelock/internal/keys"
	"github.com/udisondev/pagelock/internal/model"
)

// Match is a recognized page request.
type Match struct {
	Rule     string
	Strategy model.Strategy

	// URL is the upstream URL with the side channel removed.
	URL *url.URL

	// Resolve produces the scramble spec. It runs after the body arrived and
	// may perform its own network round trip.
	Resolve func(ctx context.Context) (model.ScrambleSpec, error)
}

// Rule recognizes one family of scramble indicators in a request URL.
type Rule interface {
	Name() string
	Match(u *url.URL) (Match, bool)
}

func static(spec model.ScrambleSpec) func(context.Context) (model.ScrambleSpec, error) {
	return func(context.Context) (model.ScrambleSpec, error) {
		return spec, nil
	}
}

// GridRule recognizes grid transposed pages by CDN prefix (GigaViewer).
// Optional width/height query parameters give the canvas size and are stripped.
type GridRule struct {
	Prefixes []string
}

func (r GridRule) Name() string { return "gigaviewer" }

func (r GridRule) Match(u *url.URL) (Match, bool) {
	plain := stripped(u).String()
	matched := false
	for _, p := range r.Prefixes {
		if p != "" && strings.HasPrefix(plain, p) {
			matched = true
			break
		}
	}
	if !matched {
		return Match{}, false
	}

	q := u.Query()
	w, _ := strconv.Atoi(q.Get("width"))
	h, _ := strconv.Atoi(q.Get("height"))
	spec := model.ScrambleSpec{Strategy: model.StrategyGridTranspose, Width: w, Height: h}
	return Match{
		Rule:     r.Name(),
		Strategy: spec.Strategy,
		URL:      stripped(u, "width", "height"),
		Resolve:  static(spec),
	}, true
}

// ShuffleRule recognizes "#scramble_seed=<n>" (MagazinePocket).
type ShuffleRule struct{}

func (ShuffleRule) Name() string { return "magazinepocket" }

func (r ShuffleRule) Match(u *url.URL) (Match, bool) {
	raw, ok := fragmentParams(u.Fragment)[constants.ShuffleFragmentKey]
	if !ok {
		return Match{}, false
	}
	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategySeededShuffle,
		URL:      stripped(u),
		Resolve: func(context.Context) (model.ScrambleSpec, error) {
			seed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return model.ScrambleSpec{}, fmt.Errorf("%w: scramble seed %q", keys.ErrKeyResolution, raw)
			}
			return model.ScrambleSpec{Strategy: model.StrategySeededShuffle, Seed: uint32(seed)}, nil
		},
	}, true
}

// PtBinbRule recognizes SpeedBinb pages: "#ptbinb,<s>,<u>" carries the tokens,
// "#ptbinb-table&cid=..&info=.." asks for a content info lookup.
type PtBinbRule struct {
	Tables *keys.TableResolver
}

func (PtBinbRule) Name() string { return "speedbinb" }

func (r PtBinbRule) Match(u *url.URL) (Match, bool) {
	fragment := u.Fragment
	switch {
	case strings.HasPrefix(fragment, constants.PtBinbTableFragmentTag):
		if r.Tables == nil {
			return Match{}, false
		}
		// info несёт свой query: разбираем экранированный фрагмент, чтобы %26 не расщепил его.
		return r.tableMatch(u, fragmentParams(strings.TrimPrefix(u.EscapedFragment(), constants.PtBinbTableFragmentTag))), true

	case strings.HasPrefix(fragment, constants.PtBinbFragmentTag+","):
		// Токены уже в URL: разбираем сразу, ошибка всплывёт на стадии ключа.
		spec, err := keys.ParseEmbeddedPair(fragment)
		return Match{
			Rule:     r.Name(),
			Strategy: spec.Strategy,
			URL:      stripped(u),
			Resolve: func(context.Context) (model.ScrambleSpec, error) {
				return spec, err
			},
		}, true
	}
	return Match{}, false
}

func (r PtBinbRule) tableMatch(u *url.URL, params map[string]string) Match {
	for k, v := range params {
		if plain, err := url.QueryUnescape(v); err == nil {
			params[k] = plain
		}
	}

	src := params["src"]
	if src == "" {
		src = u.Query().Get("src")
	}
	if src == "" {
		src = lastSegment(u)
	}

	// Strategy is known only after the tables are fetched.
	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategyNone,
		URL:      stripped(u),
		Resolve: func(ctx context.Context) (model.ScrambleSpec, error) {
			info := params["info"]
			if info == "" {
				return model.ScrambleSpec{}, fmt.Errorf("%w: missing content info url", keys.ErrKeyResolution)
			}
			s, t, err := r.Tables.Resolve(ctx, params["cid"], info, src)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			strategy, err := geometry.SelectCoordTable(s, t)
			if err != nil {
				return model.ScrambleSpec{}, fmt.Errorf("selecting coordinate table: %w", err)
			}
			return model.ScrambleSpec{Strategy: strategy, S: s, U: t}, nil
		},
	}
}

// HexCipherRule recognizes AES-CBC pages with hex key and iv, either in the
// fragment ("#key=..&iv=.." or "#key=..#iv=..") or in the query (ComicFuz).
type HexCipherRule struct{}

func (HexCipherRule) Name() string { return "comicfuz" }

func (r HexCipherRule) Match(u *url.URL) (Match, bool) {
	var keyHex, ivHex string
	var out *url.URL

	q := u.Query()
	fp := fragmentParams(u.Fragment)
	switch {
	case q.Get("key") != "" && q.Get("iv") != "":
		keyHex, ivHex = q.Get("key"), q.Get("iv")
		out = stripped(u, "key", "iv")
	case fp["key"] != "" && fp["iv"] != "":
		keyHex, ivHex = fp["key"], fp["iv"]
		out = stripped(u)
	default:
		return Match{}, false
	}

	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategyAESCBC,
		URL:      out,
		Resolve: func(context.Context) (model.ScrambleSpec, error) {
			params, err := keys.ParseHexCipher(keyHex, ivHex)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			return model.ScrambleSpec{Strategy: model.StrategyAESCBC, Cipher: params}, nil
		},
	}, true
}

// LiteralKeyRule recognizes "#key=<literal>" and "#keytype=<n>" AES-CBC pages (ColaManga).
// keytype needs the script resolver.
type LiteralKeyRule struct {
	Scripts *keys.ScriptResolver
}

func (LiteralKeyRule) Name() string { return "colamanga" }

func (r LiteralKeyRule) Match(u *url.URL) (Match, bool) {
	fp := fragmentParams(u.Fragment)
	key, hasKey := fp["key"]
	keyType, hasType := fp["keytype"]

	var resolve func(ctx context.Context) (string, error)
	switch {
	case hasKey && key != "":
		resolve = func(context.Context) (string, error) { return key, nil }
	case hasType && r.Scripts != nil:
		resolve = func(ctx context.Context) (string, error) { return r.Scripts.Key(ctx, keyType) }
	default:
		return Match{}, false
	}

	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategyAESCBC,
		URL:      stripped(u),
		Resolve: func(ctx context.Context) (model.ScrambleSpec, error) {
			literal, err := resolve(ctx)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			params, err := keys.LiteralCipher(literal)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			return model.ScrambleSpec{Strategy: model.StrategyAESCBC, Cipher: params}, nil
		},
	}, true
}

// GCMRule recognizes AES-GCM pages by URL pattern (EgoToons). Params carry the
// derived key, derivation happens once when the rule is built.
type GCMRule struct {
	Pattern *regexp.Regexp
	Params  model.CipherParams
}

func (GCMRule) Name() string { return "egotoons" }

func (r GCMRule) Match(u *url.URL) (Match, bool) {
	out := stripped(u)
	if r.Pattern == nil || !r.Pattern.MatchString(out.String()) {
		return Match{}, false
	}
	spec := model.ScrambleSpec{Strategy: model.StrategyAESGCM, Cipher: r.Params}
	return Match{Rule: r.Name(), Strategy: spec.Strategy, URL: out, Resolve: static(spec)}, true
}

// FragmentXORRule recognizes signed CDN image URLs whose fragment is the hex
// drm hash used as a cyclic XOR key (KadoComi).
type FragmentXORRule struct {
	Prefix string
}

func (FragmentXORRule) Name() string { return "kadocomi" }

func (r FragmentXORRule) Match(u *url.URL) (Match, bool) {
	out := stripped(u)
	plain := out.String()
	if u.Fragment == "" || !strings.Contains(plain, r.Prefix+"/images/") || !u.Query().Has("Key-Pair-Id") {
		return Match{}, false
	}

	hash := u.Fragment
	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategyXOR,
		URL:      out,
		Resolve: func(context.Context) (model.ScrambleSpec, error) {
			key, err := keys.ParseXORKey(hash, 0)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			return model.ScrambleSpec{Strategy: model.StrategyXOR, XORKey: key}, nil
		},
	}, true
}

// nicoImageRe is unanchored: any query or trailing path after "<n>p" still matches.
var nicoImageRe = regexp.MustCompile(`https://drm\.cdn\.nicomanga\.jp/image/([a-f0-9]+)_\d{4}/\d+p(\.[a-z]+)?`)

// PathXORRule recognizes Nicovideo DRM image URLs, the XOR key is embedded in the path.
type PathXORRule struct{}

func (PathXORRule) Name() string { return "nicovideo" }

func (r PathXORRule) Match(u *url.URL) (Match, bool) {
	out := stripped(u)
	m := nicoImageRe.FindStringSubmatch(out.String())
	if m == nil {
		return Match{}, false
	}

	keyHex := m[1]
	return Match{
		Rule:     r.Name(),
		Strategy: model.StrategyXOR,
		URL:      out,
		Resolve: func(context.Context) (model.ScrambleSpec, error) {
			key, err := keys.ParseXORKey(keyHex, constants.NicovideoKeyLength)
			if err != nil {
				return model.ScrambleSpec{}, err
			}
			return model.ScrambleSpec{Strategy: model.StrategyXOR, XORKey: key}, nil
		},
	}, true
}
