// Package geometry builds tile plans that reverse pixel rearrangements.
package geometry

import (
	"fmt"

	"github.com/udisondev/pagelock/internal/model"
)

// BuildPlan computes the plan that restores a scrambled width x height image.
// Specs that do not describe a geometric scramble produce a no-op plan.
func BuildPlan(width, height int, spec model.ScrambleSpec) (model.TilePlan, error) {
	if width <= 0 || height <= 0 {
		return model.TilePlan{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	if spec.IsZero() || spec.Strategy.IsCipher() {
		return noop(width, height), nil
	}

	switch spec.Strategy {
	case model.StrategyGridTranspose:
		// Заявленный размер не больше декодированного: лишнее было бы пустым холстом.
		w, h := width, height
		if spec.Width > 0 && spec.Height > 0 {
			w, h = min(spec.Width, width), min(spec.Height, height)
		}
		return GridTranspose(w, h), nil
	case model.StrategySeededShuffle:
		return SeededShuffle(width, height, spec.Seed)
	case model.StrategyCoordTableAlpha:
		return newAlphaTable(spec.S, spec.U).plan(width, height)
	case model.StrategyCoordTableNumeric:
		return newNumericTable(spec.S, spec.U).plan(width, height)
	default:
		return model.TilePlan{}, fmt.Errorf("%w: %s", ErrUnsupportedVariant, spec.Strategy)
	}
}

// SelectCoordTable picks the SpeedBinb variant from the first character of each token.
// Both tokens must agree.
func SelectCoordTable(s, u string) (model.Strategy, error) {
	switch {
	case s == "" || u == "":
		return model.StrategyNone, fmt.Errorf("%w: empty token", ErrUnsupportedVariant)
	case s[0] == '=' && u[0] == '=':
		return model.StrategyCoordTableAlpha, nil
	case isDigit(s[0]) && isDigit(u[0]):
		return model.StrategyCoordTableNumeric, nil
	default:
		return model.StrategyNone, fmt.Errorf("%w: tokens %q/%q", ErrUnsupportedVariant, prefix(s), prefix(u))
	}
}

func noop(width, height int) model.TilePlan {
	return model.TilePlan{Width: width, Height: height}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func prefix(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
