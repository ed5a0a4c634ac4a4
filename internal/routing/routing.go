// Package routing sequences field visits by driving distance heuristics.
// Ordering is a pure function over coordinates; it never mutates its input
// and never touches storage.
package routing

import (
	"math"

	"fieldline/internal/pipeline"
)

const earthRadiusKm = 6371

// Point is a geographic coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Order returns the properties sequenced greedy nearest-neighbor from the
// start point: repeatedly pick the unvisited property closest to the
// current position, then continue from it. Properties without usable
// coordinates are appended after every coordinate-bearing property, in
// their original relative order. The input slice is not modified.
func Order(properties []*pipeline.Property, start Point) []*pipeline.Property {
	if len(properties) <= 1 {
		return append([]*pipeline.Property(nil), properties...)
	}

	var located, unlocated []*pipeline.Property
	for _, property := range properties {
		if property.HasCoordinates() {
			located = append(located, property)
		} else {
			unlocated = append(unlocated, property)
		}
	}

	ordered := make([]*pipeline.Property, 0, len(properties))
	current := start
	remaining := append([]*pipeline.Property(nil), located...)
	for len(remaining) > 0 {
		nearest := 0
		nearestDist := Haversine(current, pointOf(remaining[0]))
		for i := 1; i < len(remaining); i++ {
			if d := Haversine(current, pointOf(remaining[i])); d < nearestDist {
				nearest = i
				nearestDist = d
			}
		}
		next := remaining[nearest]
		ordered = append(ordered, next)
		current = pointOf(next)
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}

	return append(ordered, unlocated...)
}

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func pointOf(property *pipeline.Property) Point {
	return Point{Latitude: *property.Latitude, Longitude: *property.Longitude}
}
