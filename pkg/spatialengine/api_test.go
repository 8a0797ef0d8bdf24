package spatialengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"spatialengine/internal/model"
	"spatialengine/internal/stats"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		ExportsDir: t.TempDir(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func smallScenario(t *testing.T) Scenario {
	t.Helper()
	sc, err := DefaultScenario()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	sc.Name = "small"
	sc.Seed = 7
	sc.Workers = 2
	sc.Population.Count = 60
	sc.Population.Extent = 20
	sc.Population.TagRange = 3
	sc.Queries = []string{
		QueryNeighborCount,
		QueryInteractingNeighborCount,
		QueryTotalStrength,
		QueryLocalDensity,
		QueryClippedIntegral,
		QueryNearestDistance,
		QueryDraw,
	}
	sc.DrawCount = 2
	return sc
}

func findQuery(t *testing.T, record model.RunRecord, name string) model.QuerySummary {
	t.Helper()
	for _, q := range record.Queries {
		if q.Query == name {
			return q
		}
	}
	t.Fatalf("query %s missing from record", name)
	return model.QuerySummary{}
}

func TestRunScenarioRecordsRun(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	sc := smallScenario(t)

	summary, err := client.RunScenario(ctx, sc)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	record := summary.Record
	if record.RunID == "" || record.RunID != summary.RunID {
		t.Fatalf("unexpected run id: %+v", summary)
	}
	if record.Spatiality != "xy" || record.Kernel != "f(1)" || record.MaxDistance == nil || *record.MaxDistance != 5 {
		t.Fatalf("unexpected interaction fields: %+v", record)
	}
	if len(record.Queries) != len(sc.Queries) {
		t.Fatalf("expected %d summaries, got %d", len(sc.Queries), len(record.Queries))
	}
	if len(record.Evaluations) != 1 || record.Evaluations[0].Agents != 60 {
		t.Fatalf("unexpected evaluation stats: %+v", record.Evaluations)
	}
	if record.MemoryBytes <= 0 {
		t.Fatalf("expected retained memory, got %d", record.MemoryBytes)
	}

	counts := findQuery(t, record, QueryNeighborCount)
	interacting := findQuery(t, record, QueryInteractingNeighborCount)
	totals := findQuery(t, record, QueryTotalStrength)
	if counts.Count != 60 || counts.Mean != interacting.Mean {
		t.Fatalf("unconstrained counts should agree: %+v vs %+v", counts, interacting)
	}
	// The fixed unit kernel makes each total equal the neighbour count.
	if totals.Mean != counts.Mean {
		t.Fatalf("total strength mean %f != count mean %f", totals.Mean, counts.Mean)
	}
	draws := findQuery(t, record, QueryDraw)
	if draws.Max > 2 || draws.Min < 0 {
		t.Fatalf("draws out of range: %+v", draws)
	}
	nearest := findQuery(t, record, QueryNearestDistance)
	if nearest.Count > 0 && nearest.Max > 5 {
		t.Fatalf("nearest distance beyond max distance: %+v", nearest)
	}

	loaded, ok, err := client.Run(ctx, record.RunID)
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if loaded.Scenario != "small" {
		t.Fatalf("unexpected stored run: %+v", loaded)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != record.RunID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestRunScenarioIsDeterministicPerSeed(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	sc := smallScenario(t)

	first, err := client.RunScenario(ctx, sc)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.RunScenario(ctx, sc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("expected distinct run ids")
	}
	for i := range first.Record.Queries {
		a, b := first.Record.Queries[i], second.Record.Queries[i]
		if a != b {
			t.Fatalf("query %s differs between identical runs: %+v vs %+v", a.Query, a, b)
		}
	}
}

func TestRunScenarioNonSpatial(t *testing.T) {
	client := newClient(t)
	sc := smallScenario(t)
	sc.Population.Count = 10
	sc.Interaction.Spatiality = ""
	sc.Interaction.MaxDistance = 0
	sc.Queries = []string{QueryDraw}
	sc.DrawCount = 3

	summary, err := client.RunScenario(context.Background(), sc)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if summary.Record.MaxDistance != nil {
		t.Fatalf("expected unbounded max distance, got %v", *summary.Record.MaxDistance)
	}
	draws := findQuery(t, summary.Record, QueryDraw)
	if draws.Min != 3 || draws.Max != 3 {
		t.Fatalf("every receiver should draw 3: %+v", draws)
	}

	sc.Queries = []string{QueryNeighborCount}
	if _, err := client.RunScenario(context.Background(), sc); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for spatial query, got %v", err)
	}
}

func TestRunScenarioHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newClient(t)
	if _, err := client.RunScenario(ctx, smallScenario(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil || len(runs) != 0 {
		t.Fatalf("cancelled run should not be recorded: %d runs, err=%v", len(runs), err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error when no runs exist")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected error without run id or latest")
	}

	summary, err := client.RunScenario(ctx, smallScenario(t))
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	outDir := t.TempDir()
	exported, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: outDir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported %s, want %s", exported.RunID, summary.RunID)
	}
	record, ok, err := stats.ReadRunArtifacts(outDir, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("read exported run: ok=%v err=%v", ok, err)
	}
	if len(record.Queries) != len(summary.Record.Queries) {
		t.Fatalf("exported %d queries, want %d", len(record.Queries), len(summary.Record.Queries))
	}

	if _, err := client.Export(ctx, ExportRequest{RunID: "missing", OutDir: outDir}); err == nil {
		t.Fatal("expected missing run error")
	}
}
