package model

import "time"

// KeyTable is an ordered list of decoded SpeedBinb tokens (ptbl or ctbl).
type KeyTable []string

// ChapterKeys holds both decoded tables of one SpeedBinb chapter.
type ChapterKeys struct {
	CID  string   `json:"cid"`
	PTbl KeyTable `json:"ptbl"`
	CTbl KeyTable `json:"ctbl"`
}

// KeyMapping maps script keyType codes to literal AES keys (ColaManga).
type KeyMapping map[string]string

// CipherParams is the key material of a cipher strategy. Never persisted.
type CipherParams struct {
	Key []byte
	IV  []byte

	// TagSize is the AEAD tag length, zero for non-authenticated modes.
	TagSize int
}

// CacheKey scopes a cached key material entry by site and chapter (or epoch).
type CacheKey struct {
	Site  string
	Scope string
}

func (k CacheKey) String() string {
	return k.Site + "/" + k.Scope
}

// KeyRecord is a persisted key material entry.
type KeyRecord struct {
	Key       CacheKey
	Payload   []byte
	FetchedAt time.Time
}
