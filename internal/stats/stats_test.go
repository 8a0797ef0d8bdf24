package stats

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"spatialengine/internal/model"
)

func TestSummarize(t *testing.T) {
	s := Summarize("x", []float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Count != 8 || s.Mean != 5 || s.StdDev != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Fatalf("unexpected range: %+v", s)
	}
}

func TestSummarizeSkipsNaN(t *testing.T) {
	s := Summarize("x", []float64{math.NaN(), -1, 1})
	if s.Count != 2 || s.Mean != 0 || s.Min != -1 || s.Max != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := SummarizeInts("counts", nil)
	if s.Count != 0 || s.Mean != 0 || s.Query != "counts" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestWriteAndReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	d := 2.5
	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 1, CodecVersion: 1},
		RunID:           "run-1",
		Scenario:        "uniform",
		MaxDistance:     &d,
		Evaluations:     []model.EvaluationStats{{PopulationID: "p1", Agents: 10, AllNodes: 10, ExertersAliased: true}},
		Queries: []model.QuerySummary{
			SummarizeInts("neighbor_count", []int{1, 2, 3}),
			Summarize("density", []float64{0.5}),
		},
	}

	runDir, err := WriteRunArtifacts(baseDir, record)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	f, err := os.Open(filepath.Join(runDir, queriesFile))
	if err != nil {
		t.Fatalf("open queries: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read queries: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "neighbor_count" || rows[1][2] != "2" {
		t.Fatalf("unexpected query rows: %v", rows)
	}

	loaded, ok, err := ReadRunArtifacts(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read run: ok=%v err=%v", ok, err)
	}
	if loaded.Scenario != "uniform" || loaded.MaxDistance == nil || *loaded.MaxDistance != 2.5 {
		t.Fatalf("unexpected loaded record: %+v", loaded)
	}

	_, ok, err = ReadRunArtifacts(baseDir, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}
}

func TestWriteRunArtifactsRequiresID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), model.RunRecord{}); err == nil {
		t.Fatal("expected run id error")
	}
}
