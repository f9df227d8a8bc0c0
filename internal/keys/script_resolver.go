package keys

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/udisondev/pagelock/internal/model"
)

// keyMappingRe matches `x == "<keyType>" && (y = "<key>")` assignments of the reader script.
var keyMappingRe = regexp.MustCompile(`[0-9A-Za-z_]+\s*==\s*['"](?P<keyType>\d+)['"]\s*&&\s*\([0-9A-Za-z_]+\s*=\s*['"](?P<key>[a-zA-Z0-9]+)['"]\)`)

const scriptScope = "script"

// ExtractKeyMapping collects every keyType -> key assignment found in script.
// A keyType seen twice keeps its last key.
func ExtractKeyMapping(script string) model.KeyMapping {
	typeIdx := keyMappingRe.SubexpIndex("keyType")
	keyIdx := keyMappingRe.SubexpIndex("key")

	mapping := make(model.KeyMapping)
	for _, m := range keyMappingRe.FindAllStringSubmatch(script, -1) {
		mapping[m[typeIdx]] = m[keyIdx]
	}
	return mapping
}

// ScriptResolver resolves literal AES keys by keyType from a remote reader script.
// The mapping lives for the process (or the cache ttl) until Refresh.
type ScriptResolver struct {
	client    *http.Client
	scriptURL string
	cacheKey  model.CacheKey
	cache     *Cache[model.KeyMapping]
	opts      resolverOptions
}

// NewScriptResolver creates a resolver for the script at scriptURL.
func NewScriptResolver(client *http.Client, scriptURL string, cache *Cache[model.KeyMapping], opts ...Option) (*ScriptResolver, error) {
	u, err := url.Parse(scriptURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid script url %q", scriptURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ScriptResolver{
		client:    client,
		scriptURL: scriptURL,
		cacheKey:  model.CacheKey{Site: u.Host, Scope: scriptScope},
		cache:     cache,
		opts:      applyOptions(opts),
	}, nil
}

// Mapping returns the whole keyType -> key mapping.
func (r *ScriptResolver) Mapping(ctx context.Context) (model.KeyMapping, error) {
	return r.cache.Get(ctx, r.cacheKey, r.fetch)
}

// Key returns the literal key for keyType.
func (r *ScriptResolver) Key(ctx context.Context, keyType string) (string, error) {
	mapping, err := r.Mapping(ctx)
	if err != nil {
		return "", err
	}
	key, ok := mapping[keyType]
	if !ok {
		return "", fmt.Errorf("%w: could not find key mapping for keyType %q: %w", ErrKeyResolution, keyType, ErrKeyNotFound)
	}
	return key, nil
}

// Refresh drops the cached mapping and fetches the script again.
func (r *ScriptResolver) Refresh(ctx context.Context) error {
	r.cache.Invalidate(ctx, r.cacheKey)
	if _, err := r.Mapping(ctx); err != nil {
		return fmt.Errorf("refreshing key mapping: %w", err)
	}
	return nil
}

func (r *ScriptResolver) fetch(ctx context.Context) (model.KeyMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	slog.Info("fetching key script", "url", r.scriptURL)

	body, err := fetchBody(ctx, r.client, r.scriptURL, r.opts.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetching key script: %w", err)
	}

	script, err := r.opts.deobfuscate(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: deobfuscating script: %v", ErrKeyResolution, err)
	}

	mapping := ExtractKeyMapping(script)
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: no key mapping in script", ErrKeyResolution)
	}

	slog.Debug("key mapping extracted", "url", r.scriptURL, "entries", len(mapping))
	return mapping, nil
}
