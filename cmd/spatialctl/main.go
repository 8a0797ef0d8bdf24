package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"spatialengine/internal/model"
	"spatialengine/internal/storage"
	"spatialengine/pkg/spatialengine"
)

const defaultDBPath = "spatialengine.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: "+storage.KindMemory+"|"+storage.KindSQLite),
		dbPath: fs.String("db-path", defaultDBPath, "sqlite database path"),
	}
}

func openClient(ctx context.Context, sf storeFlags, logger *slog.Logger, exportsDir string) (*spatialengine.Client, error) {
	client, err := spatialengine.New(spatialengine.Options{
		StoreKind:  *sf.kind,
		DBPath:     *sf.dbPath,
		ExportsDir: exportsDir,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// newLogger writes text logs to terminals and JSON otherwise.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	scenarioPath := fs.String("scenario", "", "scenario YAML file (defaults when empty)")
	seed := fs.Int64("seed", 0, "override scenario seed (0 keeps the scenario value)")
	workers := fs.Int("workers", -1, "override scenario workers (-1 keeps the scenario value, 0 uses all CPUs)")
	count := fs.Int("agents", 0, "override population size (0 keeps the scenario value)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(os.Stderr, *logLevel)
	if err != nil {
		return err
	}

	sc, err := spatialengine.LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	if *seed != 0 {
		sc.Seed = *seed
	}
	if *workers >= 0 {
		sc.Workers = *workers
	}
	if *count > 0 {
		sc.Population.Count = *count
	}

	client, err := openClient(ctx, sf, logger, "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunScenario(ctx, sc)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary.Record)
	}
	printRecord(summary.Record)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient(ctx, sf, slog.Default(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, spatialengine.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s scenario=%s spatiality=%s kernel=%s seed=%d memory=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Scenario,
			displaySpatiality(r.Spatiality),
			r.Kernel,
			r.Seed,
			humanize.Bytes(uint64(r.MemoryBytes)),
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id to show")
	latest := fs.Bool("latest", false, "show the most recent run")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*runID == "") == !*latest {
		return errors.New("show requires exactly one of --run-id or --latest")
	}

	client, err := openClient(ctx, sf, slog.Default(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var record model.RunRecord
	if *latest {
		runs, err := client.Runs(ctx, spatialengine.RunsRequest{Limit: 1})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return errors.New("no runs found")
		}
		record = runs[0]
	} else {
		var ok bool
		record, ok, err = client.Run(ctx, *runID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("run not found: %s", *runID)
		}
	}

	if *jsonOut {
		return writeJSON(record)
	}
	printRecord(record)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(ctx, sf, slog.Default(), *outDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, spatialengine.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func printRecord(r model.RunRecord) {
	maxD := "unbounded"
	if r.MaxDistance != nil {
		maxD = fmt.Sprintf("%g", *r.MaxDistance)
	}
	fmt.Printf("run_id=%s scenario=%s created_at=%s\n", r.RunID, r.Scenario, r.CreatedAtUTC)
	fmt.Printf("interaction spatiality=%s kernel=%s max_distance=%s seed=%d workers=%d memory=%s\n",
		displaySpatiality(r.Spatiality), r.Kernel, maxD, r.Seed, r.Workers, humanize.Bytes(uint64(r.MemoryBytes)))
	for _, e := range r.Evaluations {
		fmt.Printf("population=%s agents=%s nodes=%s exerter_nodes=%s aliased=%t build=%.3fms\n",
			e.PopulationID,
			humanize.Comma(int64(e.Agents)),
			humanize.Comma(int64(e.AllNodes)),
			humanize.Comma(int64(e.ExerterNodes)),
			e.ExertersAliased,
			e.BuildMilliseconds,
		)
	}
	for _, q := range r.Queries {
		fmt.Printf("query=%s n=%d mean=%.6g std=%.6g min=%.6g max=%.6g\n", q.Query, q.Count, q.Mean, q.StdDev, q.Min, q.Max)
	}
}

func displaySpatiality(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: spatialctl <%s> [flags]", msg, strings.Join([]string{"run", "runs", "show", "export"}, "|"))
}
