// Package listing reads job postings from the external job-listing
// collaborator. This subsystem never writes job metadata.
package listing

import "context"

// Job is one posting consumed to build batch reference items.
type Job struct {
	ID          string  `json:"id" mapstructure:"id"`
	Title       string  `json:"title" mapstructure:"title"`
	Description string  `json:"description" mapstructure:"description"`
	MatchScore  float64 `json:"matchScore" mapstructure:"match_score"`
}

// Source is a read-only provider of job postings.
type Source interface {
	Jobs(ctx context.Context) ([]Job, error)
}
