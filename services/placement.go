package services

import (
	"math"
	"math/rand"

	"floorops/models"
)

// AreaBounds is the drawing box of a floor area and the spacing factor applied to
// table footprints placed in it.
type AreaBounds struct {
	MinX    float64 `json:"minX"`
	MinY    float64 `json:"minY"`
	MaxX    float64 `json:"maxX"`
	MaxY    float64 `json:"maxY"`
	Spacing float64 `json:"espacamento"`
}

var AreaLayouts = map[string]AreaBounds{
	models.AreaInterna:   {MinX: 0, MinY: 0, MaxX: 800, MaxY: 600, Spacing: 1.5},
	models.AreaExterna:   {MinX: 0, MinY: 0, MaxX: 600, MaxY: 400, Spacing: 1.8},
	models.AreaVaranda:   {MinX: 0, MinY: 0, MaxX: 500, MaxY: 300, Spacing: 1.6},
	models.AreaPrivativa: {MinX: 0, MinY: 0, MaxX: 400, MaxY: 300, Spacing: 1.4},
}

func validArea(area string) bool {
	_, ok := AreaLayouts[area]
	return ok
}

// footprint is the drawn size of a table in px.
func footprint(capacity int) float64 {
	return 30 + 5*float64(capacity)
}

// AutoPlace picks a position for a new table of the given capacity among the existing
// tables of the area. It scans a grid of cells sized by the spaced footprint and keeps
// the cell with the lowest total overlap, stopping at the first cell with none. Ties go
// to the first cell in row-major order. The result is not guaranteed collision free.
func AutoPlace(area string, capacity int, existing []models.Mesa, rnd *rand.Rand) models.Localizacao {
	b, ok := AreaLayouts[area]
	if !ok {
		b = AreaLayouts[models.AreaInterna]
	}
	if len(existing) == 0 {
		return models.Localizacao{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
	}

	size := footprint(capacity) * b.Spacing
	cols := int((b.MaxX - b.MinX) / size)
	rows := int((b.MaxY - b.MinY) / size)
	if cols == 0 || rows == 0 {
		return models.Localizacao{
			X: b.MinX + rnd.Float64()*(b.MaxX-b.MinX),
			Y: b.MinY + rnd.Float64()*(b.MaxY-b.MinY),
		}
	}

	var best models.Localizacao
	bestScore := math.Inf(1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cand := models.Localizacao{
				X: b.MinX + size/2 + float64(c)*size,
				Y: b.MinY + size/2 + float64(r)*size,
			}
			score := overlap(cand, size, existing, b.Spacing)
			if score < bestScore {
				best, bestScore = cand, score
			}
			if score == 0 {
				return best
			}
		}
	}
	return best
}

func overlap(cand models.Localizacao, size float64, existing []models.Mesa, spacing float64) float64 {
	total := 0.0
	for _, e := range existing {
		minDist := (size + footprint(e.Capacity)*spacing) / 2
		d := math.Hypot(cand.X-e.Location.X, cand.Y-e.Location.Y)
		if d < minDist {
			total += minDist - d
		}
	}
	return total
}
