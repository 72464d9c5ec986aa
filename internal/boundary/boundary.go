// Package boundary validates that a building footprint lies inside a
// surveyed plot polygon and measures the plot area and any protrusion.
// Plot and footprint must share one projected coordinate space in meters;
// CRS transformation belongs upstream.
package boundary

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"bylaw-check/internal/models"
)

// ErrNoPolygon is returned when a plot file contains no polygon feature.
var ErrNoPolygon = errors.New("no polygon feature found in plot file")

// LoadPlot reads the plot boundary ring from a shapefile or GeoJSON file,
// chosen by extension.
func LoadPlot(path string) (orb.Ring, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return loadShapefile(path)
	case ".geojson", ".json":
		return loadGeoJSON(path)
	default:
		return nil, fmt.Errorf("unsupported plot format %q (want .shp, .geojson or .json)", filepath.Ext(path))
	}
}

func loadShapefile(path string) (orb.Ring, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer reader.Close()

	for reader.Next() {
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if len(polygon.Points) == 0 {
			continue
		}

		// First part only; holes and islands are not surveyed plot shapes.
		end := len(polygon.Points)
		if len(polygon.Parts) > 1 {
			end = int(polygon.Parts[1])
		}

		ring := make(orb.Ring, 0, end+1)
		for _, p := range polygon.Points[:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		return closeRing(ring), nil
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}
	return nil, ErrNoPolygon
}

func loadGeoJSON(path string) (orb.Ring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plot file: %w", err)
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, feature := range fc.Features {
			if ring := ringFromGeometry(feature.Geometry); ring != nil {
				return closeRing(ring), nil
			}
		}
		return nil, ErrNoPolygon
	}

	if feature, err := geojson.UnmarshalFeature(data); err == nil {
		if ring := ringFromGeometry(feature.Geometry); ring != nil {
			return closeRing(ring), nil
		}
		return nil, ErrNoPolygon
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	if ring := ringFromGeometry(g.Geometry()); ring != nil {
		return closeRing(ring), nil
	}
	return nil, ErrNoPolygon
}

func ringFromGeometry(g orb.Geometry) orb.Ring {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) > 0 {
			return geom[0]
		}
	case orb.MultiPolygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0]
		}
	}
	return nil
}

func closeRing(ring orb.Ring) orb.Ring {
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Footprint builds the building outline from the four setback ordinates,
// matching how the metrics were measured off the drawing origin.
func Footprint(metrics models.BuildingMetrics) orb.Ring {
	return orb.Ring{
		{metrics.SetbackLeftM, metrics.SetbackRearM},
		{metrics.SetbackRightM, metrics.SetbackRearM},
		{metrics.SetbackRightM, metrics.SetbackFrontM},
		{metrics.SetbackLeftM, metrics.SetbackFrontM},
		{metrics.SetbackLeftM, metrics.SetbackRearM},
	}
}

// edgeSamples is the number of probe points per footprint edge. Corner
// containment alone misses concave plots whose notch cuts between two
// corners, so each edge is sampled as well.
const edgeSamples = 16

func samplePoints(ring orb.Ring) []orb.Point {
	var pts []orb.Point
	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]
		for s := 0; s < edgeSamples; s++ {
			t := float64(s) / edgeSamples
			pts = append(pts, orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t})
		}
	}
	return pts
}

// Validate checks footprint containment against the plot ring. Containment
// is tested at the footprint corners and at points sampled along each edge,
// which catches concave plot boundaries crossing between corners.
//
// The violation distance is the furthest protrusion: the maximum distance
// from any tested footprint point outside the plot to the plot boundary.
// Unlike a geometry-to-geometry distance it stays non-zero for partially
// overlapping shapes, where a real violation exists but the geometries touch.
func Validate(plot orb.Ring, metrics models.BuildingMetrics) models.BoundaryResult {
	footprint := Footprint(metrics)

	within := true
	violation := 0.0
	for _, vertex := range samplePoints(footprint) {
		if planar.RingContains(plot, vertex) {
			continue
		}
		within = false
		violation = math.Max(violation, planar.DistanceFrom(plot, vertex))
	}

	if within {
		violation = 0
	}

	return models.BoundaryResult{
		WithinPlot:         within,
		PlotAreaM2:         math.Abs(planar.Area(orb.Polygon{plot})),
		ViolationDistanceM: violation,
	}
}
