package favorites

import (
	"fmt"
	"strings"
	"time"

	"github.com/robertmeta/rover-cli/model"
)

// QueryOptions specifies how to list saved photos.
type QueryOptions struct {
	Limit  int
	Offset int
	Rover  string
	Camera string
	Since  *time.Time // earliest Earth date, inclusive
	Until  *time.Time // latest Earth date, inclusive
}

// Query filters the current snapshot, keeping insertion order, then applies
// pagination.
func (s *Store) Query(opts QueryOptions) []model.Photo {
	return Filter(s.List(), opts)
}

// Filter applies opts to photos.
func Filter(photos []model.Photo, opts QueryOptions) []model.Photo {
	out := make([]model.Photo, 0, len(photos))
	for _, p := range photos {
		if opts.Rover != "" && !strings.EqualFold(p.Rover.Name, opts.Rover) {
			continue
		}
		if opts.Camera != "" && p.Camera.FullName != opts.Camera && !strings.EqualFold(p.Camera.Name, opts.Camera) {
			continue
		}
		if opts.Since != nil || opts.Until != nil {
			day, err := time.Parse(model.DateLayout, p.EarthDate)
			if err != nil {
				continue
			}
			if opts.Since != nil && day.Before(*opts.Since) {
				continue
			}
			if opts.Until != nil && day.After(*opts.Until) {
				continue
			}
		}
		out = append(out, p)
	}

	// Apply pagination
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []model.Photo{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// BuildQueryOptions constructs QueryOptions from CLI flags.
func BuildQueryOptions(limit, offset int, rover, camera, since, until string) (QueryOptions, error) {
	opts := QueryOptions{
		Limit:  limit,
		Offset: offset,
		Rover:  rover,
		Camera: camera,
	}

	if limit < 0 || offset < 0 {
		return opts, fmt.Errorf("limit and offset must be non-negative")
	}

	if since != "" {
		t, err := time.Parse(model.DateLayout, since)
		if err != nil {
			return opts, fmt.Errorf("failed to parse --since flag: %w", err)
		}
		opts.Since = &t
	}

	if until != "" {
		t, err := time.Parse(model.DateLayout, until)
		if err != nil {
			return opts, fmt.Errorf("failed to parse --until flag: %w", err)
		}
		opts.Until = &t
	}

	if opts.Since != nil && opts.Until != nil && opts.Until.Before(*opts.Since) {
		return opts, fmt.Errorf("--until %s is before --since %s", until, since)
	}

	return opts, nil
}
