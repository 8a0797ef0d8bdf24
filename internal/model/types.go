package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// EvaluationStats describes the cached state built for one population.
type EvaluationStats struct {
	PopulationID      string  `json:"population_id"`
	Agents            int     `json:"agents"`
	AllNodes          int     `json:"all_nodes"`
	ExerterNodes      int     `json:"exerter_nodes"`
	ExertersAliased   bool    `json:"exerters_aliased"`
	BuildMilliseconds float64 `json:"build_ms"`
}

// QuerySummary aggregates one query over every receiver of a scenario.
type QuerySummary struct {
	Query  string  `json:"query"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// RunRecord is the ledger entry written for one scenario run.
type RunRecord struct {
	VersionedRecord
	RunID        string            `json:"run_id"`
	CreatedAtUTC string            `json:"created_at_utc"`
	Scenario     string            `json:"scenario"`
	Spatiality   string            `json:"spatiality"`
	Kernel       string            `json:"kernel"`
	MaxDistance  *float64          `json:"max_distance,omitempty"` // nil when unbounded
	Seed         int64             `json:"seed"`
	Workers      int               `json:"workers"`
	Evaluations  []EvaluationStats `json:"evaluations"`
	Queries      []QuerySummary    `json:"queries"`
	MemoryBytes  int64             `json:"memory_bytes"`
}
