package keys

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/geometry"
	"github.com/udisondev/pagelock/internal/model"
)

const urlSafeLookup = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// ParseEmbeddedPair parses a "ptbinb,<s>,<u>" fragment. The token shape picks
// the coordinate table variant.
func ParseEmbeddedPair(fragment string) (model.ScrambleSpec, error) {
	parts := strings.Split(fragment, ",")
	if len(parts) != 3 || parts[0] != constants.PtBinbFragmentTag {
		return model.ScrambleSpec{}, fmt.Errorf("%w: malformed embedded pair fragment", ErrKeyResolution)
	}

	strategy, err := geometry.SelectCoordTable(parts[1], parts[2])
	if err != nil {
		return model.ScrambleSpec{}, fmt.Errorf("selecting coordinate table: %w", err)
	}
	return model.ScrambleSpec{Strategy: strategy, S: parts[1], U: parts[2]}, nil
}

// DecodeScrambleTable decodes an obfuscated ptbl/ctbl string with the stream seeded
// from "cid:sharedKey". Arithmetic is 32-bit signed and works on UTF-16 code units.
func DecodeScrambleTable(cid, sharedKey, table string) string {
	seed := utf16.Encode([]rune(cid + ":" + sharedKey))

	var e int32
	for i, c := range seed {
		if i == 0 {
			e = int32(c)
			continue
		}
		e += int32(c) << (i % 16)
	}
	e &= 0x7fffffff
	if e == 0 {
		e = constants.ScrambleTableSeedFallback
	}

	in := utf16.Encode([]rune(table))
	out := make([]uint16, len(in))
	for i, c := range in {
		e = int32(uint32(e)>>1) ^ (constants.ScrambleTableFeedback & -(1 & e))
		out[i] = uint16((int32(c)-32+e)%94 + 32)
	}
	return string(utf16.Decode(out))
}

// GenerateSharedKey builds the per-request key sent to the content info endpoint:
// random characters interleaved with check characters derived from cid.
func GenerateSharedKey(cid string, rnd io.Reader) (string, error) {
	if cid == "" {
		return "", fmt.Errorf("%w: empty cid", ErrKeyResolution)
	}

	const n = constants.SharedKeyRandomLength
	buf := make([]byte, n)
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	units := utf16.Encode([]rune(cid))
	repeat := (n + len(units) - 1) / len(units)
	rep := make([]uint16, 0, len(units)*repeat)
	for range repeat {
		rep = append(rep, units...)
	}
	head := rep[:n]
	tail := rep[len(rep)-n:]

	var sb strings.Builder
	sb.Grow(2 * n)
	var s, h, u int
	for i, b := range buf {
		c := urlSafeLookup[b&63]
		s ^= int(c)
		h ^= int(head[i])
		u ^= int(tail[i])

		sb.WriteByte(c)
		sb.WriteByte(urlSafeLookup[(s+h+u)&63])
	}
	return sb.String(), nil
}

// KeyPairIndex returns the ptbl and ctbl indices for src: sums of the filename's
// character codes at even and odd positions, each modulo the table size.
func KeyPairIndex(src string) (int, int) {
	if src == "" {
		return 0, 0
	}
	filename := src[strings.LastIndexByte(src, '/')+1:]

	var sums [2]int
	for i, c := range utf16.Encode([]rune(filename)) {
		sums[i%2] += int(c)
	}
	return sums[0] % constants.KeyTableSize, sums[1] % constants.KeyTableSize
}

// SelectKeyPair picks the s token from ptbl and the u token from ctbl for src.
func SelectKeyPair(src string, ptbl, ctbl model.KeyTable) (s, u string, err error) {
	pi, ci := KeyPairIndex(src)
	if pi >= len(ptbl) || ci >= len(ctbl) {
		return "", "", fmt.Errorf("%w: index %d/%d over tables of %d/%d", ErrKeyNotFound, pi, ci, len(ptbl), len(ctbl))
	}
	return ptbl[pi], ctbl[ci], nil
}
