package output

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"github.com/h39s/VessCoopJ/internal/models"
)

const (
	roiHeaderSize = 64
	roiVersion    = 227
	roiPolygon    = 0
)

// EncodeROI writes one polygon in the ImageJ binary ROI format. Coordinates
// are stored relative to the bounding box, x values first.
func EncodeROI(points []image.Point) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("empty polygon")
	}
	if len(points) > 0xFFFF {
		return nil, fmt.Errorf("polygon has %d vertices, limit is 65535", len(points))
	}
	b := polygonBounds(points)

	buf := make([]byte, roiHeaderSize+4*len(points))
	copy(buf[0:4], "Iout")
	binary.BigEndian.PutUint16(buf[4:], roiVersion)
	buf[6] = roiPolygon
	binary.BigEndian.PutUint16(buf[8:], uint16(b.Min.Y))
	binary.BigEndian.PutUint16(buf[10:], uint16(b.Min.X))
	binary.BigEndian.PutUint16(buf[12:], uint16(b.Max.Y))
	binary.BigEndian.PutUint16(buf[14:], uint16(b.Max.X))
	binary.BigEndian.PutUint16(buf[16:], uint16(len(points)))

	xs := buf[roiHeaderSize:]
	ys := buf[roiHeaderSize+2*len(points):]
	for i, p := range points {
		binary.BigEndian.PutUint16(xs[2*i:], uint16(p.X-b.Min.X))
		binary.BigEndian.PutUint16(ys[2*i:], uint16(p.Y-b.Min.Y))
	}
	return buf, nil
}

// DecodeROI reads back a polygon written by EncodeROI.
func DecodeROI(data []byte) ([]image.Point, error) {
	if len(data) < roiHeaderSize || string(data[0:4]) != "Iout" {
		return nil, fmt.Errorf("not an ImageJ ROI")
	}
	if data[6] != roiPolygon {
		return nil, fmt.Errorf("unsupported ROI type %d", data[6])
	}
	top := int(int16(binary.BigEndian.Uint16(data[8:])))
	left := int(int16(binary.BigEndian.Uint16(data[10:])))
	n := int(binary.BigEndian.Uint16(data[16:]))
	if len(data) < roiHeaderSize+4*n {
		return nil, fmt.Errorf("truncated ROI: %d vertices declared", n)
	}
	xs := data[roiHeaderSize:]
	ys := data[roiHeaderSize+2*n:]
	pts := make([]image.Point, n)
	for i := range pts {
		pts[i] = image.Pt(
			left+int(int16(binary.BigEndian.Uint16(xs[2*i:]))),
			top+int(int16(binary.BigEndian.Uint16(ys[2*i:]))),
		)
	}
	return pts, nil
}

// polygonBounds spans the vertex coordinates. For outlines traced along
// pixel corners this is the region's pixel rectangle, which is what ImageJ
// stores as top, left, bottom and right.
func polygonBounds(points []image.Point) image.Rectangle {
	r := image.Rectangle{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	return r
}

func regionOutline(r models.CellRegion) []image.Point {
	if len(r.Boundary) > 0 {
		return r.Boundary
	}
	b := r.Bounds
	return []image.Point{b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}}
}

// roiName follows the ImageJ manager convention "yyyy-xxxx" using the
// bounding-box centre.
func roiName(r models.CellRegion) string {
	c := r.Bounds.Min.Add(r.Bounds.Max).Div(2)
	return fmt.Sprintf("%04d-%04d", c.Y, c.X)
}

// EncodeROISet zips one .roi entry per region, in region order.
func EncodeROISet(regions []models.CellRegion) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int)

	for _, r := range regions {
		data, err := EncodeROI(regionOutline(r))
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", r.Index, err)
		}
		name := roiName(r)
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s-%d", name, n)
		} else {
			used[name] = 1
		}
		w, err := zw.Create(name + ".roi")
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
