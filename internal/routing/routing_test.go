package routing_test

import (
	"math"
	"testing"

	"fieldline/internal/pipeline"
	"fieldline/internal/routing"
)

func located(id int64, lat, lng float64) *pipeline.Property {
	return &pipeline.Property{ID: id, Latitude: &lat, Longitude: &lng}
}

func TestOrderGreedyNearestFirst(t *testing.T) {
	// Longitudes 1, 3, 2 on the equator, presented out of order; greedy
	// from the origin must visit them west to east.
	input := []*pipeline.Property{
		located(1, 0, 1),
		located(2, 0, 3),
		located(3, 0, 2),
	}

	ordered := routing.Order(input, routing.Point{})

	want := []int64{1, 3, 2}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d properties, got %d", len(want), len(ordered))
	}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("position %d: expected property %d, got %d", i, id, ordered[i].ID)
		}
	}
}

func TestOrderAppendsUnlocatedLast(t *testing.T) {
	input := []*pipeline.Property{
		{ID: 10},
		located(11, 0, 2),
		{ID: 12, Latitude: new(float64)}, // longitude missing
		located(13, 0, 1),
	}

	ordered := routing.Order(input, routing.Point{})

	want := []int64{13, 11, 10, 12}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("position %d: expected property %d, got %d", i, id, ordered[i].ID)
		}
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	input := []*pipeline.Property{
		located(1, 0, 3),
		located(2, 0, 1),
		located(3, 0, 2),
	}

	routing.Order(input, routing.Point{})

	for i, id := range []int64{1, 2, 3} {
		if input[i].ID != id {
			t.Fatalf("input slice mutated at %d: got %d", i, input[i].ID)
		}
	}
}

func TestOrderSmallInputs(t *testing.T) {
	if got := routing.Order(nil, routing.Point{}); len(got) != 0 {
		t.Fatalf("empty input should yield empty output, got %d", len(got))
	}

	single := []*pipeline.Property{located(1, 10, 10)}
	got := routing.Order(single, routing.Point{})
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("single input should pass through, got %#v", got)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Los Angeles to San Francisco, roughly 559 km.
	la := routing.Point{Latitude: 34.0522, Longitude: -118.2437}
	sf := routing.Point{Latitude: 37.7749, Longitude: -122.4194}

	d := routing.Haversine(la, sf)
	if math.Abs(d-559) > 5 {
		t.Fatalf("expected ~559 km, got %.1f", d)
	}

	if routing.Haversine(la, la) != 0 {
		t.Fatal("distance to self must be zero")
	}
}
