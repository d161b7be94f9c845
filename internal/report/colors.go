package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot/palette/brewer"
)

// ErrUnknownPalette is returned when a named palette is not a ColorBrewer qualitative scheme.
var ErrUnknownPalette = errors.New("unknown palette")

// DefaultColors is the fixed cycle used when no palette is named:
// blue, orange, green, red and purple.
var DefaultColors = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 255},
}

// AssignColors maps each group to a color, cycling over the palette in
// insertion order. An empty name selects DefaultColors; any other name is
// looked up among the ColorBrewer qualitative palettes (e.g. "Set1", "Dark2").
func AssignColors(groups []string, paletteName string) (map[string]color.Color, error) {
	colors, err := paletteColors(paletteName, len(groups))
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]color.Color, len(groups))
	for _, g := range groups {
		if _, ok := assigned[g]; ok {
			continue
		}
		assigned[g] = colors[len(assigned)%len(colors)]
	}
	return assigned, nil
}

func paletteColors(name string, n int) ([]color.Color, error) {
	if name == "" {
		return DefaultColors, nil
	}
	if _, ok := brewer.QualitativePalettes[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}

	// Brewer schemes come in fixed sizes; take the largest one up to n and cycle.
	for k := max(n, 3); k >= 3; k-- {
		p, err := brewer.GetPalette(brewer.TypeQualitative, name, k)
		if err == nil {
			return p.Colors(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q has no usable size", ErrUnknownPalette, name)
}
