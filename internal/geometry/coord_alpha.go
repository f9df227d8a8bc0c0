package geometry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

// alphaTokenRe matches "=<wp>-<hp><sign><padding>-<pieces>".
var alphaTokenRe = regexp.MustCompile(`^=([0-9]+)-([0-9]+)([-+])([0-9]+)-([-_0-9A-Za-z]+)$`)

const alphaLookup = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// alphaTable is the '=' token variant. Pieces are separated by padding in the
// scrambled image, so the restored canvas is smaller than the input.
type alphaTable struct {
	widthPieces  int
	heightPieces int
	padding      int

	// srcRemCol[row] is the column holding the narrow piece of that row,
	// srcRemRow[col] the row holding the short piece of that column.
	srcRemCol []int
	srcRemRow []int
	dstRemCol []int
	dstRemRow []int

	pieceDest []int
}

type alphaPieces struct {
	remRow []int
	remCol []int
	pieces []int
}

// newAlphaTable parses the s (source) and u (destination) tokens. A token pair
// that does not describe a valid scramble yields a table reporting !scrambled().
func newAlphaTable(s, u string) *alphaTable {
	t := &alphaTable{}

	src := alphaTokenRe.FindStringSubmatch(s)
	dst := alphaTokenRe.FindStringSubmatch(u)
	if src == nil || dst == nil {
		return t
	}
	if src[1] != dst[1] || src[2] != dst[2] || src[4] != dst[4] || dst[3] != "+" || src[3] != "-" {
		return t
	}

	wp, err1 := strconv.Atoi(dst[1])
	hp, err2 := strconv.Atoi(dst[2])
	pad, err3 := strconv.Atoi(dst[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return t
	}
	if wp < constants.PtBinbFMinPieces || hp < constants.PtBinbFMinPieces || wp*hp < constants.PtBinbFMinPieces*constants.PtBinbFMinPieces {
		return t
	}
	// Счётчики ограничены длиной токена до любых умножений.
	if l := len(src[5]); wp > l || hp > l || wp*hp > l {
		return t
	}

	n := wp + hp + wp*hp
	if len(src[5]) != n || len(dst[5]) != n {
		return t
	}

	srcP, ok := decodeAlphaPieces(src[5], wp, hp)
	if !ok {
		return t
	}
	dstP, ok := decodeAlphaPieces(dst[5], wp, hp)
	if !ok {
		return t
	}

	pieceDest := make([]int, wp*hp)
	for i := range pieceDest {
		j := srcP.pieces[i]
		if j >= len(dstP.pieces) || dstP.pieces[j] >= len(pieceDest) {
			return t
		}
		pieceDest[i] = dstP.pieces[j]
	}

	t.widthPieces = wp
	t.heightPieces = hp
	t.padding = pad
	t.srcRemCol = srcP.remCol
	t.srcRemRow = srcP.remRow
	t.dstRemCol = dstP.remCol
	t.dstRemRow = dstP.remRow
	t.pieceDest = pieceDest
	return t
}

func decodeAlphaPieces(key string, wp, hp int) (alphaPieces, bool) {
	p := alphaPieces{
		remRow: make([]int, wp),
		remCol: make([]int, hp),
		pieces: make([]int, wp*hp),
	}
	for i := range p.remRow {
		p.remRow[i] = strings.IndexByte(alphaLookup, key[i])
	}
	for i := range p.remCol {
		p.remCol[i] = strings.IndexByte(alphaLookup, key[wp+i])
	}
	for i := range p.pieces {
		v := strings.IndexByte(alphaLookup, key[wp+hp+i])
		if v < 0 {
			return alphaPieces{}, false
		}
		p.pieces[i] = v
	}
	return p, true
}

func (t *alphaTable) scrambled() bool {
	return t.pieceDest != nil
}

func (t *alphaTable) canDescramble(width, height int) bool {
	i := 2 * t.widthPieces * t.padding
	n := 2 * t.heightPieces * t.padding
	return width >= 64+i && height >= 64+n && width*height >= (320+i)*(320+n)
}

func (t *alphaTable) plan(width, height int) (model.TilePlan, error) {
	if !t.scrambled() {
		return noop(width, height), nil
	}
	if !t.canDescramble(width, height) {
		return model.TilePlan{
			Width:        width,
			Height:       height,
			Instructions: []model.TileInstruction{{Width: width, Height: height}},
		}, nil
	}

	wp, hp, pad := t.widthPieces, t.heightPieces, t.padding
	canvasW := width - 2*wp*pad
	canvasH := height - 2*hp*pad
	pw := (canvasW + wp - 1) / wp
	rw := canvasW - (wp-1)*pw
	ph := (canvasH + hp - 1) / hp
	rh := canvasH - (hp-1)*ph
	if rw <= 0 || rh <= 0 {
		return model.TilePlan{}, fmt.Errorf("%w: %dx%d pieces over %dx%d canvas", ErrDegenerateGeometry, wp, hp, canvasW, canvasH)
	}

	plan := model.TilePlan{
		Width:        canvasW,
		Height:       canvasH,
		Instructions: make([]model.TileInstruction, 0, wp*hp),
	}
	for o := range wp * hp {
		col, row := o%wp, o/wp
		dstCol, dstRow := t.pieceDest[o]%wp, t.pieceDest[o]/wp

		inst := model.TileInstruction{
			SrcX:   pad + col*(pw+2*pad),
			SrcY:   pad + row*(ph+2*pad),
			Width:  pw,
			Height: ph,
			DstX:   dstCol * pw,
			DstY:   dstRow * ph,
		}
		if t.srcRemCol[row] < col {
			inst.SrcX += rw - pw
		}
		if t.srcRemRow[col] < row {
			inst.SrcY += rh - ph
		}
		if t.srcRemCol[row] == col {
			inst.Width = rw
		}
		if t.srcRemRow[col] == row {
			inst.Height = rh
		}
		if t.dstRemCol[dstRow] < dstCol {
			inst.DstX += rw - pw
		}
		if t.dstRemRow[dstCol] < dstRow {
			inst.DstY += rh - ph
		}
		plan.Instructions = append(plan.Instructions, inst)
	}
	return plan, nil
}
