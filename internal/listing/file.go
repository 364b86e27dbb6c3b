package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
)

// FileSource reads postings from a JSON file holding an array of loosely
// shaped job objects.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Jobs(_ context.Context) ([]Job, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading job listing file: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing job listing file: %w", err)
	}

	var jobs []Job
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &jobs,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building job decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding jobs: %w", err)
	}

	out := jobs[:0]
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		out = append(out, job)
	}

	return out, nil
}
