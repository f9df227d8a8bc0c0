package model

import "image"

// TileInstruction copies a Width x Height rectangle from (SrcX, SrcY) of the
// scrambled image to (DstX, DstY) of the output canvas.
type TileInstruction struct {
	SrcX   int
	SrcY   int
	Width  int
	Height int
	DstX   int
	DstY   int
}

// Src returns the source rectangle.
func (t TileInstruction) Src() image.Rectangle {
	return image.Rect(t.SrcX, t.SrcY, t.SrcX+t.Width, t.SrcY+t.Height)
}

// Dst returns the destination rectangle.
func (t TileInstruction) Dst() image.Rectangle {
	return image.Rect(t.DstX, t.DstY, t.DstX+t.Width, t.DstY+t.Height)
}

// TilePlan is an ordered list of tile copies onto a Width x Height canvas.
// Later instructions overwrite earlier ones where they overlap.
//
// A plan without instructions is a no-op: the original image is kept as is.
type TilePlan struct {
	Width        int
	Height       int
	Instructions []TileInstruction
}

// IsNoop reports whether applying the plan leaves the image untouched.
func (p TilePlan) IsNoop() bool {
	return len(p.Instructions) == 0
}

// Bounds returns the bounding box of every destination rectangle.
func (p TilePlan) Bounds() image.Rectangle {
	var r image.Rectangle
	for _, t := range p.Instructions {
		r = r.Union(t.Dst())
	}
	return r
}

// Inverse returns a plan that undoes p: every instruction copies from its
// destination back to its source. Instructions covering the full canvas in
// place (identity copies) keep their position at the start of the plan.
func (p TilePlan) Inverse() TilePlan {
	inv := TilePlan{
		Width:        p.Width,
		Height:       p.Height,
		Instructions: make([]TileInstruction, len(p.Instructions)),
	}
	for i, t := range p.Instructions {
		inv.Instructions[i] = TileInstruction{
			SrcX:   t.DstX,
			SrcY:   t.DstY,
			Width:  t.Width,
			Height: t.Height,
			DstX:   t.SrcX,
			DstY:   t.SrcY,
		}
	}
	return inv
}
