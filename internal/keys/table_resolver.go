package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/udisondev/pagelock/internal/model"
)

// contentInfo is the subset of the content info response used for key tables.
type contentInfo struct {
	Result int               `json:"result"`
	Items  []contentInfoItem `json:"items"`
}

type contentInfoItem struct {
	ContentID string `json:"ContentID"`
	CTbl      string `json:"ctbl"`
	PTbl      string `json:"ptbl"`
}

// TableResolver resolves SpeedBinb s/u token pairs through the content info endpoint.
// Decoded tables are cached per chapter.
type TableResolver struct {
	client *http.Client
	cache  *Cache[model.ChapterKeys]
	opts   resolverOptions
}

// NewTableResolver creates a resolver. client nil means http.DefaultClient.
func NewTableResolver(client *http.Client, cache *Cache[model.ChapterKeys], opts ...Option) *TableResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &TableResolver{
		client: client,
		cache:  cache,
		opts:   applyOptions(opts),
	}
}

// Resolve returns the s/u tokens for the image src of chapter cid.
func (r *TableResolver) Resolve(ctx context.Context, cid, infoURL, src string) (s, u string, err error) {
	keys, err := r.Chapter(ctx, cid, infoURL)
	if err != nil {
		return "", "", err
	}
	s, u, err = SelectKeyPair(src, keys.PTbl, keys.CTbl)
	if err != nil {
		return "", "", fmt.Errorf("selecting key pair for %q: %w", src, err)
	}
	return s, u, nil
}

// Chapter returns the decoded tables of chapter cid, fetching them at most once per ttl.
func (r *TableResolver) Chapter(ctx context.Context, cid, infoURL string) (model.ChapterKeys, error) {
	if cid == "" {
		return model.ChapterKeys{}, fmt.Errorf("%w: empty cid", ErrKeyResolution)
	}
	endpoint, err := url.Parse(infoURL)
	if err != nil || endpoint.Host == "" {
		return model.ChapterKeys{}, fmt.Errorf("%w: invalid content info url %q", ErrKeyResolution, infoURL)
	}

	key := model.CacheKey{Site: endpoint.Host, Scope: cid}
	return r.cache.Get(ctx, key, func(ctx context.Context) (model.ChapterKeys, error) {
		return r.fetch(ctx, endpoint, cid)
	})
}

func (r *TableResolver) fetch(ctx context.Context, endpoint *url.URL, cid string) (model.ChapterKeys, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	sharedKey, err := GenerateSharedKey(cid, r.opts.rnd)
	if err != nil {
		return model.ChapterKeys{}, fmt.Errorf("generating shared key: %w", err)
	}

	u := *endpoint
	q := u.Query()
	q.Set("cid", cid)
	q.Set("k", sharedKey)
	q.Set("dmytime", strconv.FormatInt(r.opts.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	slog.Info("fetching content info", "host", u.Host, "cid", cid)

	body, err := fetchBody(ctx, r.client, u.String(), r.opts.userAgent)
	if err != nil {
		return model.ChapterKeys{}, fmt.Errorf("fetching content info for cid %s: %w", cid, err)
	}

	var info contentInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return model.ChapterKeys{}, fmt.Errorf("%w: decoding content info: %v", ErrKeyResolution, err)
	}
	if info.Result != 1 {
		return model.ChapterKeys{}, fmt.Errorf("%w: content info result %d", ErrKeyResolution, info.Result)
	}
	if len(info.Items) == 0 {
		return model.ChapterKeys{}, fmt.Errorf("%w: content info has no items", ErrKeyResolution)
	}

	item := info.Items[0]
	ptbl, err := decodeKeyTable(cid, sharedKey, item.PTbl)
	if err != nil {
		return model.ChapterKeys{}, fmt.Errorf("decoding ptbl: %w", err)
	}
	ctbl, err := decodeKeyTable(cid, sharedKey, item.CTbl)
	if err != nil {
		return model.ChapterKeys{}, fmt.Errorf("decoding ctbl: %w", err)
	}

	slog.Debug("content info decoded", "cid", cid, "ptbl", len(ptbl), "ctbl", len(ctbl))
	return model.ChapterKeys{CID: cid, PTbl: ptbl, CTbl: ctbl}, nil
}

func decodeKeyTable(cid, sharedKey, obfuscated string) (model.KeyTable, error) {
	var table model.KeyTable
	if err := json.Unmarshal([]byte(DecodeScrambleTable(cid, sharedKey, obfuscated)), &table); err != nil {
		return nil, fmt.Errorf("%w: key table is not a json array: %v", ErrKeyResolution, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: empty key table", ErrKeyResolution)
	}
	return table, nil
}
