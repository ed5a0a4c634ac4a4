package testsupport

import (
	"context"
	"fmt"
	"testing"

	"fieldline/internal/config"
	"fieldline/internal/pipeline"
)

// MustOpenStore opens a pipeline.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *pipeline.Store {
	t.Helper()

	store, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProperty creates one pending property for tests using the provided store.
func NewProperty(t testing.TB, store *pipeline.Store, streetNumber, streetName, zip string) *pipeline.Property {
	t.Helper()

	created, err := store.CreateProperties(context.Background(), []pipeline.NewPropertyInput{
		{StreetNumber: streetNumber, StreetName: streetName, ZipCode: zip},
	})
	if err != nil {
		t.Fatalf("store.CreateProperties: %v", err)
	}
	return created[0]
}

// SeedProperties creates n pending properties with distinct addresses.
func SeedProperties(t testing.TB, store *pipeline.Store, n int) []*pipeline.Property {
	t.Helper()

	inputs := make([]pipeline.NewPropertyInput, 0, n)
	for i := 0; i < n; i++ {
		inputs = append(inputs, pipeline.NewPropertyInput{
			StreetNumber: fmt.Sprintf("%d", 100+i),
			StreetName:   "Test Ave",
			ZipCode:      "90210",
		})
	}
	created, err := store.CreateProperties(context.Background(), inputs)
	if err != nil {
		t.Fatalf("store.CreateProperties: %v", err)
	}
	return created
}
