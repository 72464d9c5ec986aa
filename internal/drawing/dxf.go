// Package drawing extracts building metrics from ASCII DXF floor plans: the
// footprint polyline, bounding-box setbacks and the building height, all
// normalized to meters.
package drawing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"bylaw-check/internal/models"
)

// ErrNoFootprint is returned when the drawing contains no closed polyline
// to treat as the building footprint.
var ErrNoFootprint = errors.New("no closed polyline found in drawing")

// Options control unit conversion and derived quantities.
type Options struct {
	// Units is the drawing's linear unit: "mm", "cm", "m" or "in". The DXF
	// $INSUNITS header variable overrides it when present.
	Units string
	// FloorCount multiplies the footprint area into the gross floor area.
	FloorCount int
	// DefaultHeightM is used when the drawing carries no height information;
	// a missing height must not abort the run.
	DefaultHeightM float64
}

// DefaultOptions mirrors the common case: drawings dimensioned in
// millimeters, a single floor, 10 m fallback height.
func DefaultOptions() Options {
	return Options{
		Units:          "mm",
		FloorCount:     1,
		DefaultHeightM: 10.0,
	}
}

var unitScales = map[string]float64{
	"mm": 0.001,
	"cm": 0.01,
	"m":  1.0,
	"in": 0.0254,
}

// $INSUNITS codes, per the DXF reference.
var insunitsScales = map[int]float64{
	1: 0.0254, // inches
	4: 0.001,  // millimeters
	5: 0.01,   // centimeters
	6: 1.0,    // meters
}

var textHeightRe = regexp.MustCompile(`(?i)height\D*?(\d+\.?\d*)\s*m`)

// ParseFloorPlan reads a DXF file and extracts building metrics.
func ParseFloorPlan(path string, opts Options) (models.BuildingMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.BuildingMetrics{}, fmt.Errorf("failed to open drawing: %w", err)
	}
	defer f.Close()

	return Parse(f, opts)
}

// Parse extracts building metrics from an ASCII DXF stream.
func Parse(r io.Reader, opts Options) (models.BuildingMetrics, error) {
	doc, err := scan(r)
	if err != nil {
		return models.BuildingMetrics{}, err
	}

	scale, ok := unitScales[opts.Units]
	if !ok {
		return models.BuildingMetrics{}, fmt.Errorf("unknown drawing unit %q", opts.Units)
	}
	if headerScale, ok := insunitsScales[doc.insunits]; ok {
		scale = headerScale
	}

	footprint := doc.largestClosedPolyline()
	if footprint == nil {
		return models.BuildingMetrics{}, ErrNoFootprint
	}

	minX, minY, maxX, maxY := boundingBox(footprint.points)
	areaM2 := math.Abs(polygonArea(footprint.points)) * scale * scale

	floors := opts.FloorCount
	if floors < 1 {
		floors = 1
	}

	metrics := models.BuildingMetrics{
		HeightM:         doc.height(scale, opts.DefaultHeightM),
		SetbackFrontM:   math.Max(0, maxY*scale),
		SetbackRearM:    math.Abs(minY) * scale,
		SetbackLeftM:    math.Abs(minX) * scale,
		SetbackRightM:   math.Max(0, maxX*scale),
		FootprintAreaM2: areaM2,
		TotalAreaM2:     areaM2 * float64(floors),
	}

	return metrics, nil
}

type point struct {
	x, y float64
}

type polyline struct {
	points []point
	closed bool
}

type document struct {
	insunits      int
	polylines     []polyline
	faceMaxZ      float64
	hasFace       bool
	textHeightM   float64
	hasTextHeight bool
}

// height resolves the building height: 3DFACE apex in drawing units first,
// then a "HEIGHT 12.5M" style text annotation (already meters), then the
// configured fallback.
func (d *document) height(scale, fallback float64) float64 {
	if d.hasFace {
		return math.Max(0, d.faceMaxZ*scale)
	}
	if d.hasTextHeight {
		return d.textHeightM
	}
	return fallback
}

func (d *document) largestClosedPolyline() *polyline {
	var best *polyline
	bestArea := 0.0
	for i := range d.polylines {
		p := &d.polylines[i]
		if !p.closed || len(p.points) < 3 {
			continue
		}
		area := math.Abs(polygonArea(p.points))
		if area > bestArea {
			bestArea = area
			best = p
		}
	}
	return best
}

type tag struct {
	code  int
	value string
}

func readTags(r io.Reader) ([]tag, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var tags []tag
	for scanner.Scan() {
		codeLine := strings.TrimSpace(scanner.Text())
		if !scanner.Scan() {
			break
		}
		value := strings.TrimRight(scanner.Text(), "\r\n")

		code, err := strconv.Atoi(codeLine)
		if err != nil {
			return nil, fmt.Errorf("malformed DXF group code %q: %w", codeLine, err)
		}
		tags = append(tags, tag{code: code, value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read drawing: %w", err)
	}
	return tags, nil
}

func scan(r io.Reader) (*document, error) {
	tags, err := readTags(r)
	if err != nil {
		return nil, err
	}

	doc := &document{}
	section := ""

	for i := 0; i < len(tags); i++ {
		t := tags[i]

		if t.code == 0 && t.value == "SECTION" {
			if i+1 < len(tags) && tags[i+1].code == 2 {
				section = tags[i+1].value
				i++
			}
			continue
		}
		if t.code == 0 && t.value == "ENDSEC" {
			section = ""
			continue
		}

		switch section {
		case "HEADER":
			if t.code == 9 && t.value == "$INSUNITS" {
				if i+1 < len(tags) && tags[i+1].code == 70 {
					if code, err := strconv.Atoi(tags[i+1].value); err == nil {
						doc.insunits = code
					}
					i++
				}
			}
		case "ENTITIES":
			if t.code != 0 {
				continue
			}
			switch t.value {
			case "LWPOLYLINE":
				i = doc.readLWPolyline(tags, i)
			case "POLYLINE":
				i = doc.readPolyline(tags, i)
			case "3DFACE":
				i = doc.read3DFace(tags, i)
			case "TEXT", "MTEXT":
				i = doc.readText(tags, i)
			}
		}
	}

	return doc, nil
}

// readLWPolyline consumes an LWPOLYLINE entity starting at tags[start] and
// returns the index of the last consumed tag. Vertex ordinates come as
// repeated 10/20 pairs; bit 1 of group 70 marks a closed polyline.
func (d *document) readLWPolyline(tags []tag, start int) int {
	var p polyline
	i := start + 1
	for ; i < len(tags) && tags[i].code != 0; i++ {
		switch tags[i].code {
		case 10:
			if x, err := strconv.ParseFloat(tags[i].value, 64); err == nil {
				p.points = append(p.points, point{x: x})
			}
		case 20:
			if y, err := strconv.ParseFloat(tags[i].value, 64); err == nil && len(p.points) > 0 {
				p.points[len(p.points)-1].y = y
			}
		case 70:
			if flags, err := strconv.Atoi(tags[i].value); err == nil {
				p.closed = flags&1 != 0
			}
		}
	}
	d.polylines = append(d.polylines, p)
	return i - 1
}

// readPolyline consumes a legacy POLYLINE entity with its VERTEX children,
// up to the closing SEQEND.
func (d *document) readPolyline(tags []tag, start int) int {
	var p polyline
	i := start + 1

	for ; i < len(tags); i++ {
		t := tags[i]
		if t.code == 0 {
			if t.value == "SEQEND" {
				break
			}
			if t.value != "VERTEX" {
				i--
				break
			}
			continue
		}
		switch t.code {
		case 10:
			if x, err := strconv.ParseFloat(t.value, 64); err == nil {
				p.points = append(p.points, point{x: x})
			}
		case 20:
			if y, err := strconv.ParseFloat(t.value, 64); err == nil && len(p.points) > 0 {
				p.points[len(p.points)-1].y = y
			}
		case 70:
			if flags, err := strconv.Atoi(t.value); err == nil && !p.closed {
				p.closed = flags&1 != 0
			}
		}
	}

	d.polylines = append(d.polylines, p)
	return i
}

// read3DFace tracks the highest Z ordinate seen across 3DFACE corners
// (groups 30, 31, 32, 33).
func (d *document) read3DFace(tags []tag, start int) int {
	i := start + 1
	for ; i < len(tags) && tags[i].code != 0; i++ {
		switch tags[i].code {
		case 30, 31, 32, 33:
			if z, err := strconv.ParseFloat(tags[i].value, 64); err == nil {
				if !d.hasFace || z > d.faceMaxZ {
					d.faceMaxZ = z
					d.hasFace = true
				}
			}
		}
	}
	return i - 1
}

// readText looks for height annotations like "BUILDING HEIGHT 12.5M".
func (d *document) readText(tags []tag, start int) int {
	i := start + 1
	for ; i < len(tags) && tags[i].code != 0; i++ {
		if tags[i].code != 1 {
			continue
		}
		match := textHeightRe.FindStringSubmatch(tags[i].value)
		if match == nil {
			continue
		}
		if h, err := strconv.ParseFloat(match[1], 64); err == nil && !d.hasTextHeight {
			d.textHeightM = h
			d.hasTextHeight = true
		}
	}
	return i - 1
}

// polygonArea is the shoelace formula; the sign depends on winding order.
func polygonArea(pts []point) float64 {
	if len(pts) < 3 {
		return 0
	}
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	return area / 2
}

func boundingBox(pts []point) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.x)
		minY = math.Min(minY, p.y)
		maxX = math.Max(maxX, p.x)
		maxY = math.Max(maxY, p.y)
	}
	return minX, minY, maxX, maxY
}
