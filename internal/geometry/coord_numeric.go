package geometry

import (
	"strconv"
	"strings"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

const numericLookup = "aAbBcCdDeEfFgGhHiIjJkKlLmMnNoOpPqQrRsStTuUvVwWxXyYzZ"

// numericPiece is expressed in half units: even values count full pieces,
// an odd value adds the remainder piece once.
type numericPiece struct {
	x, y, w, h int
}

type numericPieces struct {
	ndx, ndy int
	pieces   []numericPiece
}

// numericTable is the digit token variant ("<ndx>-<ndy>-<letters>").
// The canvas keeps the size of the scrambled image.
type numericTable struct {
	src *numericPieces
	dst *numericPieces
}

func newNumericTable(s, u string) *numericTable {
	src := parseNumericPieces(u)
	dst := parseNumericPieces(s)
	if src == nil || dst == nil || src.ndx != dst.ndx || src.ndy != dst.ndy {
		return &numericTable{}
	}
	return &numericTable{src: src, dst: dst}
}

func parseNumericPieces(key string) *numericPieces {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return nil
	}
	ndx, err := strconv.Atoi(parts[0])
	if err != nil || ndx <= 0 {
		return nil
	}
	ndy, err := strconv.Atoi(parts[1])
	if err != nil || ndy <= 0 {
		return nil
	}
	e := parts[2]
	if ndx > len(e) || ndy > len(e) || ndx*ndy > len(e)/2 || ndx*ndy*2 != len(e) {
		return nil
	}

	full := (ndx-1)*(ndy-1) - 1
	shortRow := ndx - 1 + full
	shortCol := ndy - 1 + shortRow

	res := &numericPieces{ndx: ndx, ndy: ndy, pieces: make([]numericPiece, ndx*ndy)}
	for d := range ndx * ndy {
		x := strings.IndexByte(numericLookup, e[2*d])
		y := strings.IndexByte(numericLookup, e[2*d+1])
		if x < 0 || y < 0 {
			return nil
		}

		var w, h int
		switch {
		case d <= full:
			w, h = 2, 2
		case d <= shortRow:
			w, h = 2, 1
		case d <= shortCol:
			w, h = 1, 2
		default:
			w, h = 1, 1
		}
		res.pieces[d] = numericPiece{x: x, y: y, w: w, h: h}
	}
	return res
}

func (t *numericTable) scrambled() bool {
	return t.src != nil && t.dst != nil
}

func (t *numericTable) plan(width, height int) (model.TilePlan, error) {
	if !t.scrambled() {
		return noop(width, height), nil
	}

	plan := model.TilePlan{Width: width, Height: height}
	if width < constants.PtBinbAMinSize || height < constants.PtBinbAMinSize || width*height < constants.PtBinbAMinArea {
		plan.Instructions = []model.TileInstruction{{Width: width, Height: height}}
		return plan, nil
	}

	n := width - width%8
	pw := (n-1)/7 - (n-1)/7%8
	rw := n - 7*pw
	s := height - height%8
	ph := (s-1)/7 - (s-1)/7%8
	rh := s - 7*ph

	// Координаты в половинных единицах: чётные - целые куски, нечётные добавляют остаток.
	unitX := func(v int) int { return v/2*pw + v%2*rw }
	unitY := func(v int) int { return v/2*ph + v%2*rh }

	plan.Instructions = make([]model.TileInstruction, 0, len(t.src.pieces)+2)
	for i, src := range t.src.pieces {
		dst := t.dst.pieces[i]
		plan.Instructions = append(plan.Instructions, model.TileInstruction{
			SrcX:   unitX(src.x),
			SrcY:   unitY(src.y),
			Width:  unitX(src.w),
			Height: unitY(src.h),
			DstX:   unitX(dst.x),
			DstY:   unitY(dst.y),
		})
	}

	l := pw*(t.src.ndx-1) + rw
	v := ph*(t.src.ndy-1) + rh
	if l < width {
		plan.Instructions = append(plan.Instructions, model.TileInstruction{SrcX: l, Width: width - l, Height: v, DstX: l})
	}
	if v < height {
		plan.Instructions = append(plan.Instructions, model.TileInstruction{SrcY: v, Width: width, Height: height - v, DstY: v})
	}
	return plan, nil
}
