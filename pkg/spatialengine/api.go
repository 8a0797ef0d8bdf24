// Package spatialengine runs spatial interaction scenarios over generated
// populations and keeps a ledger of their results.
package spatialengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"spatialengine/internal/interaction"
	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
	"spatialengine/internal/popgen"
	"spatialengine/internal/stats"
	"spatialengine/internal/storage"
)

const (
	defaultDBPath     = "spatialengine.db"
	defaultExportsDir = "exports"
	defaultRunsLimit  = 20

	// Fixed-width so created_at sorts lexically in both stores.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store      storage.Store
	exportsDir string
	logger     *slog.Logger
}

type RunSummary struct {
	RunID  string
	Record model.RunRecord
}

type RunsRequest struct {
	Limit int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		exportsDir: exportsDir,
		logger:     logger,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// RunScenario generates the scenario's population, evaluates one
// interaction over it, runs every configured query for all agents and
// records the summaries in the store.
func (c *Client) RunScenario(ctx context.Context, sc Scenario) (RunSummary, error) {
	if err := sc.Validate(); err != nil {
		return RunSummary{}, err
	}
	start := time.Now()

	pop, err := buildPopulation(sc)
	if err != nil {
		return RunSummary{}, err
	}
	in, err := c.buildInteraction(sc)
	if err != nil {
		return RunSummary{}, err
	}
	if err := in.Evaluate(pop); err != nil {
		return RunSummary{}, err
	}
	defer in.Unevaluate()

	receivers := make([]int, pop.Len())
	for i := range receivers {
		receivers[i] = i
	}

	summaries := make([]model.QuerySummary, 0, len(sc.Queries))
	for _, q := range sc.Queries {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		summary, err := runQuery(in, sc, q, pop, receivers)
		if err != nil {
			return RunSummary{}, fmt.Errorf("query %s: %w", q, err)
		}
		summaries = append(summaries, summary)
	}

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID:        uuid.NewString(),
		CreatedAtUTC: time.Now().UTC().Format(createdAtLayout),
		Scenario:     sc.Name,
		Spatiality:   in.Axes(),
		Kernel:       in.Kernel().String(),
		Seed:         sc.Seed,
		Workers:      in.Workers(),
		Evaluations:  in.EvaluationStats(),
		Queries:      summaries,
		MemoryBytes:  in.MemoryUsage().Total(),
	}
	if d := in.MaxDistance(); !math.IsInf(d, 1) {
		record.MaxDistance = &d
	}

	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	c.logger.Info("scenario run complete",
		"run_id", record.RunID,
		"scenario", sc.Name,
		"agents", pop.Len(),
		"queries", len(summaries),
		"elapsed", time.Since(start),
	)
	return RunSummary{RunID: record.RunID, Record: record}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	return c.store.ListRuns(ctx, req.Limit)
}

func (c *Client) Run(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	return c.store.GetRun(ctx, runID)
}

// Export writes a recorded run as JSON and CSV artifacts.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	var record model.RunRecord
	if req.Latest {
		runs, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(runs) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		record = runs[0]
	} else {
		var ok bool
		var err error
		record, ok, err = c.store.GetRun(ctx, req.RunID)
		if err != nil {
			return ExportSummary{}, err
		}
		if !ok {
			return ExportSummary{}, fmt.Errorf("run not found: %s", req.RunID)
		}
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, record)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: record.RunID, Directory: filepath.Clean(dir)}, nil
}

func buildPopulation(sc Scenario) (*popgen.Population, error) {
	p := sc.Population
	meta := popgen.Box(p.Dimensions, p.Extent, p.Periodic)
	agents, err := popgen.Generate(popgen.LayoutConfig{
		Kind:         p.Layout,
		Count:        p.Count,
		Seed:         sc.Seed,
		MaleFraction: p.MaleFraction,
		NoiseScale:   p.NoiseScale,
		TagRange:     p.TagRange,
		MaxAge:       p.MaxAge,
	}, meta)
	if err != nil {
		return nil, model.Errorf(model.ErrConfiguration, "RunScenario", "%v", err)
	}
	var opts []popgen.Option
	if p.MaxAge > 0 {
		opts = append(opts, popgen.WithAge())
	}
	return popgen.New(sc.Name, meta, agents, opts...), nil
}

func (c *Client) buildInteraction(sc Scenario) (*interaction.Interaction, error) {
	in, err := interaction.New(interaction.Config{
		ID:          sc.Name,
		Spatiality:  sc.Interaction.Spatiality,
		MaxDistance: sc.Interaction.MaxDistance,
		Workers:     sc.Workers,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, err
	}

	t, err := kernel.ParseType(sc.Interaction.Kernel)
	if err != nil {
		return nil, err
	}
	if err := in.SetKernel(t, sc.Interaction.Params...); err != nil {
		return nil, err
	}

	receiver, err := sc.Receiver.roleConstraint()
	if err != nil {
		return nil, err
	}
	exerter, err := sc.Exerter.roleConstraint()
	if err != nil {
		return nil, err
	}
	if err := in.SetConstraints(interaction.Receiver, receiver); err != nil {
		return nil, err
	}
	if err := in.SetConstraints(interaction.Exerter, exerter); err != nil {
		return nil, err
	}
	return in, nil
}

// runQuery evaluates one query with every agent as receiver and the same
// population as exerters.
func runQuery(in *interaction.Interaction, sc Scenario, query string, pop model.Population, receivers []int) (model.QuerySummary, error) {
	switch query {
	case QueryNeighborCount:
		counts, err := in.NeighborCount(pop, receivers, pop)
		if err != nil {
			return model.QuerySummary{}, err
		}
		return stats.SummarizeInts(query, counts), nil
	case QueryInteractingNeighborCount:
		counts, err := in.InteractingNeighborCount(pop, receivers, pop)
		if err != nil {
			return model.QuerySummary{}, err
		}
		return stats.SummarizeInts(query, counts), nil
	case QueryTotalStrength:
		totals, err := in.TotalOfNeighborStrengths(pop, receivers, pop)
		if err != nil {
			return model.QuerySummary{}, err
		}
		return stats.Summarize(query, totals), nil
	case QueryLocalDensity:
		densities, err := in.LocalPopulationDensity(pop, receivers, pop)
		if err != nil {
			return model.QuerySummary{}, err
		}
		return stats.Summarize(query, densities), nil
	case QueryClippedIntegral:
		integrals, err := in.ClippedIntegral(pop, receivers)
		if err != nil {
			return model.QuerySummary{}, err
		}
		return stats.Summarize(query, integrals), nil
	case QueryNearestDistance:
		means := make([]float64, len(receivers))
		for i, r := range receivers {
			nearest, err := in.NearestNeighbors(pop, r, sc.NearestCount, pop)
			if err != nil {
				return model.QuerySummary{}, err
			}
			if len(nearest) == 0 {
				means[i] = math.NaN()
				continue
			}
			dists, err := in.Distance(pop, r, pop, nearest)
			if err != nil {
				return model.QuerySummary{}, err
			}
			var sum float64
			for _, d := range dists {
				sum += d
			}
			means[i] = sum / float64(len(dists))
		}
		return stats.Summarize(query, means), nil
	case QueryDraw:
		draws, err := in.DrawByStrengthAll(pop, receivers, sc.DrawCount, pop, sc.Seed)
		if err != nil {
			return model.QuerySummary{}, err
		}
		drawn := make([]int, len(draws))
		for i, d := range draws {
			drawn[i] = len(d)
		}
		return stats.SummarizeInts(query, drawn), nil
	default:
		return model.QuerySummary{}, model.Errorf(model.ErrConfiguration, "RunScenario", "unknown query %q", query)
	}
}
