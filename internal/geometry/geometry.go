// Package geometry measures pixel regions.
package geometry

import (
	"image"
	"math"
	"sort"
)

// ConvexHull returns the hull of pts in counter-clockwise order using the
// monotone chain algorithm. Collinear points are dropped.
func ConvexHull(pts []image.Point) []image.Point {
	if len(pts) < 3 {
		out := make([]image.Point, len(pts))
		copy(out, pts)
		return out
	}

	sorted := make([]image.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	hull := make([]image.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b image.Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// PixelCorners returns the outer corners of each row span of pixels. Their
// hull equals the hull of every pixel square in the region.
func PixelCorners(pixels []image.Point) []image.Point {
	type span struct{ lo, hi int }
	rows := make(map[int]span)
	for _, p := range pixels {
		s, ok := rows[p.Y]
		if !ok {
			rows[p.Y] = span{p.X, p.X}
			continue
		}
		if p.X < s.lo {
			s.lo = p.X
		}
		if p.X > s.hi {
			s.hi = p.X
		}
		rows[p.Y] = s
	}

	corners := make([]image.Point, 0, 4*len(rows))
	for y, s := range rows {
		corners = append(corners,
			image.Pt(s.lo, y), image.Pt(s.lo, y+1),
			image.Pt(s.hi+1, y), image.Pt(s.hi+1, y+1),
		)
	}
	return corners
}

// MaxCaliper is the largest distance between any two points.
func MaxCaliper(pts []image.Point) float64 {
	hull := ConvexHull(pts)
	best := 0
	for i := 0; i < len(hull); i++ {
		for j := i + 1; j < len(hull); j++ {
			dx, dy := hull[i].X-hull[j].X, hull[i].Y-hull[j].Y
			if d := dx*dx + dy*dy; d > best {
				best = d
			}
		}
	}
	return math.Sqrt(float64(best))
}

// Feret returns the maximum caliper diameter of a pixel region in pixels,
// measured over pixel corners so a single pixel has diameter sqrt(2).
func Feret(pixels []image.Point) float64 {
	if len(pixels) == 0 {
		return 0
	}
	return MaxCaliper(PixelCorners(pixels))
}

// Bounds returns the smallest rectangle containing every pixel.
func Bounds(pixels []image.Point) image.Rectangle {
	if len(pixels) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(pixels[0].X, pixels[0].Y, pixels[0].X+1, pixels[0].Y+1)
	for _, p := range pixels[1:] {
		r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	}
	return r
}

// Outline traces the outer boundary of an 8-connected region along pixel
// corners, clockwise on screen starting at the top-left corner of the first
// pixel in raster order. Only direction changes are kept as vertices, so a
// solid n×m block yields four corners enclosing exactly n·m pixels. Where
// two pixels touch only diagonally the trace passes through the shared
// corner twice. Holes are not traced.
func Outline(pixels []image.Point) []image.Point {
	if len(pixels) == 0 {
		return nil
	}

	in := make(map[image.Point]bool, len(pixels))
	start := pixels[0]
	for _, p := range pixels {
		in[p] = true
		if p.Y < start.Y || (p.Y == start.Y && p.X < start.X) {
			start = p
		}
	}

	// Crack edges keyed by their start corner. Walking an edge keeps the
	// region on the right.
	type edge struct{ from, dir image.Point }
	var (
		east  = image.Pt(1, 0)
		south = image.Pt(0, 1)
		west  = image.Pt(-1, 0)
		north = image.Pt(0, -1)
	)
	edges := make(map[edge]bool, 4*len(pixels))
	for p := range in {
		if !in[p.Add(north)] {
			edges[edge{p, east}] = true
		}
		if !in[p.Add(east)] {
			edges[edge{image.Pt(p.X+1, p.Y), south}] = true
		}
		if !in[p.Add(south)] {
			edges[edge{image.Pt(p.X+1, p.Y+1), west}] = true
		}
		if !in[p.Add(west)] {
			edges[edge{image.Pt(p.X, p.Y+1), north}] = true
		}
	}

	out := []image.Point{start}
	at, dir := start, east
	for {
		next := at.Add(dir)
		if next == start {
			break
		}
		// Left first keeps diagonal neighbours inside the outline.
		found := false
		for _, d := range []image.Point{image.Pt(dir.Y, -dir.X), dir, image.Pt(-dir.Y, dir.X)} {
			e := edge{next, d}
			if !edges[e] {
				continue
			}
			delete(edges, e)
			if d != dir {
				out = append(out, next)
			}
			at, dir, found = next, d, true
			break
		}
		if !found {
			break
		}
	}
	return out
}
