// Package domain contains the core data structures and domain logic for the application.
package domain

// Repository describes a repository returned by the listing endpoint.
type Repository struct {
	Owner    string
	Name     string
	FullName string
	Fork     bool
}

// WeeklySample is one week of aggregated additions and deletions for a repository.
// Deletions are usually reported by GitHub as a non-positive number.
type WeeklySample struct {
	Week      int64
	Additions int64
	Deletions int64
}

// StatsRecord is a single point of the persisted time series.
// It is the only entity written to disk.
type StatsRecord struct {
	Date       string `json:"date"`
	TotalLines int64  `json:"total_lines"`
}

// EstimateSource tells which signal produced a repository estimate.
type EstimateSource string

const (
	SourceCodeFrequency EstimateSource = "code_frequency"
	SourceLanguages     EstimateSource = "languages"
	SourceNone          EstimateSource = "none"
)

// RepoEstimate is the clamped line estimate for one repository.
type RepoEstimate struct {
	Repository Repository
	Lines      int64
	Source     EstimateSource
}

// RunReport summarizes a completed update run.
type RunReport struct {
	Date         string
	Repositories int
	TotalLines   int64
	BySource     map[EstimateSource]int
	Median       float64
	Max          float64
	Records      int
}
