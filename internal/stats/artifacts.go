package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"spatialengine/internal/model"
)

const (
	runFile         = "run.json"
	queriesFile     = "queries.csv"
	evaluationsFile = "evaluations.csv"
)

// WriteRunArtifacts writes a run record under baseDir/<run id> as JSON
// plus CSV tables of its query summaries and index build statistics.
func WriteRunArtifacts(baseDir string, record model.RunRecord) (string, error) {
	if record.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, record.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), record); err != nil {
		return "", err
	}

	queries := [][]string{{"query", "count", "mean", "std_dev", "min", "max"}}
	for _, q := range record.Queries {
		queries = append(queries, []string{
			q.Query,
			strconv.Itoa(q.Count),
			formatFloat(q.Mean),
			formatFloat(q.StdDev),
			formatFloat(q.Min),
			formatFloat(q.Max),
		})
	}
	if err := writeCSV(filepath.Join(runDir, queriesFile), queries); err != nil {
		return "", err
	}

	evaluations := [][]string{{"population_id", "agents", "all_nodes", "exerter_nodes", "exerters_aliased", "build_ms"}}
	for _, e := range record.Evaluations {
		evaluations = append(evaluations, []string{
			e.PopulationID,
			strconv.Itoa(e.Agents),
			strconv.Itoa(e.AllNodes),
			strconv.Itoa(e.ExerterNodes),
			strconv.FormatBool(e.ExertersAliased),
			formatFloat(e.BuildMilliseconds),
		})
	}
	if err := writeCSV(filepath.Join(runDir, evaluationsFile), evaluations); err != nil {
		return "", err
	}

	return runDir, nil
}

func ReadRunArtifacts(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, false, err
	}
	return record, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
