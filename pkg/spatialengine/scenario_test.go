package spatialengine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spatialengine/internal/model"
)

func TestDefaultScenarioIsValid(t *testing.T) {
	sc, err := DefaultScenario()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if sc.Interaction.Spatiality != "xy" || sc.Population.Count != 500 {
		t.Fatalf("unexpected defaults: %+v", sc)
	}
}

func TestParseScenarioOverlaysDefaults(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: clustered
population:
  layout: simplex
  count: 40
interaction:
  kernel: n
  params: [1, 2]
receiver:
  sex: F
exerter:
  tag: 3
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Name != "clustered" || sc.Population.Layout != "simplex" || sc.Population.Count != 40 {
		t.Fatalf("overlay not applied: %+v", sc)
	}
	if sc.Population.Dimensions != 2 || sc.Interaction.MaxDistance != 5 {
		t.Fatalf("defaults not kept: %+v", sc)
	}
	if len(sc.Interaction.Params) != 2 || sc.Exerter.Tag == nil || *sc.Exerter.Tag != 3 {
		t.Fatalf("unexpected interaction or constraints: %+v", sc)
	}
	rc, err := sc.Receiver.roleConstraint()
	if err != nil || rc.Sex != model.SexFemale {
		t.Fatalf("receiver constraint: %+v err=%v", rc, err)
	}
}

func TestParseScenarioRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown query": "queries: [bogus]",
		"bad kernel":    "interaction: {kernel: q}",
		"bad sex":       "receiver: {sex: X}",
		"zero count":    "population: {count: 0}",
		"dimensions":    "population: {dimensions: 4}",
		"nearest count": "nearest_count: 0",
	}
	for name, data := range cases {
		if _, err := ParseScenario([]byte(data)); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestNearestCountOnlyCheckedWhenQueried(t *testing.T) {
	sc, err := ParseScenario([]byte("queries: [neighbor_count]\nnearest_count: 0\n"))
	if err != nil {
		t.Fatalf("nearest_count should be ignored without nearest_distance: %v", err)
	}
	if sc.NearestCount != 0 {
		t.Fatalf("unexpected nearest_count %d", sc.NearestCount)
	}
	if _, err := ParseScenario([]byte("queries: [nearest_distance]\nnearest_count: 0\n")); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadScenarioFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte("name: from-file\nseed: 42\n"), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Name != "from-file" || sc.Seed != 42 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
