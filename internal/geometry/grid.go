package geometry

import (
	"fmt"
	"sort"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

// GridTranspose returns the GigaViewer plan: the whole image is copied in
// place, then every cell of the 4x4 grid is moved to its transposed position
// (row and column swapped). Cells are floor(dim/32)*8 pixels; pixels outside
// the grid keep their position.
//
// The transpose is its own inverse.
func GridTranspose(width, height int) model.TilePlan {
	const n = constants.GridDivisions
	cw, ch := gridCell(width, height)

	plan := model.TilePlan{
		Width:        width,
		Height:       height,
		Instructions: make([]model.TileInstruction, 0, n*n+1),
	}
	plan.Instructions = append(plan.Instructions, model.TileInstruction{Width: width, Height: height})
	if cw == 0 || ch == 0 {
		return plan
	}

	for e := range n * n {
		dstE := e%n*n + e/n
		plan.Instructions = append(plan.Instructions, model.TileInstruction{
			SrcX:   e % n * cw,
			SrcY:   e / n * ch,
			Width:  cw,
			Height: ch,
			DstX:   dstE % n * cw,
			DstY:   dstE / n * ch,
		})
	}
	return plan
}

// SeededShuffle returns the MagazinePocket plan. Destination cell d of the
// 4x4 grid receives source cell perm[d], where perm orders the cell indices
// by the xorshift32 stream generated from seed.
func SeededShuffle(width, height int, seed uint32) (model.TilePlan, error) {
	const n = constants.GridDivisions
	cw, ch := gridCell(width, height)
	if cw == 0 || ch == 0 {
		return model.TilePlan{}, fmt.Errorf("%w: cell %dx%d for image %dx%d", ErrDegenerateGeometry, cw, ch, width, height)
	}

	perm := ShuffleOrder(seed, n*n)
	plan := model.TilePlan{
		Width:        width,
		Height:       height,
		Instructions: make([]model.TileInstruction, 0, n*n+1),
	}
	// Края за пределами сетки не перемешиваются, копируем как есть.
	plan.Instructions = append(plan.Instructions, model.TileInstruction{Width: width, Height: height})

	for dst, src := range perm {
		plan.Instructions = append(plan.Instructions, model.TileInstruction{
			SrcX:   src % n * cw,
			SrcY:   src / n * ch,
			Width:  cw,
			Height: ch,
			DstX:   dst % n * cw,
			DstY:   dst / n * ch,
		})
	}
	return plan, nil
}

// ShuffleOrder returns the cell indices 0..size-1 sorted by the xorshift32
// value drawn for each of them.
func ShuffleOrder(seed uint32, size int) []int {
	type item struct {
		value uint32
		index int
	}

	prng := NewXorShift32(seed)
	items := make([]item, size)
	for i := range items {
		items[i] = item{value: prng.Next(), index: i}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value < items[j].value
	})

	order := make([]int, size)
	for i, it := range items {
		order[i] = it.index
	}
	return order
}

func gridCell(width, height int) (int, int) {
	const unit = constants.GridDivisions * constants.GridCellMultiple
	return width / unit * constants.GridCellMultiple, height / unit * constants.GridCellMultiple
}
