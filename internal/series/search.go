package series

import (
	"context"
	"strings"
)

// Search matches labels of every collection against the whitespace-separated
// patterns, case-insensitively by substring. Results read "collection/label".
func (r *Reader) Search(ctx context.Context, patterns string) ([]string, error) {
	fields := strings.Fields(strings.ToLower(patterns))
	if len(fields) == 0 {
		return []string{}, nil
	}
	collections, err := r.store.Collections(ctx)
	if err != nil {
		return nil, err
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, name := range collections {
		labels, err := r.store.Labels(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, pattern := range fields {
			for _, label := range labels {
				if !strings.Contains(strings.ToLower(label), pattern) {
					continue
				}
				key := name + "/" + label
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, key)
			}
		}
	}
	return out, nil
}

// Collection is one collection with its schema and labels.
type Collection struct {
	Name   string   `json:"name"`
	Schema Schema   `json:"schema"`
	Labels []string `json:"labels"`
}

// Collections lists every collection with its schema and labels.
func (r *Reader) Collections(ctx context.Context) ([]Collection, error) {
	names, err := r.store.Collections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Collection, 0, len(names))
	for _, name := range names {
		schema, err := r.store.Schema(ctx, name)
		if err != nil {
			return nil, err
		}
		labels, err := r.store.Labels(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Collection{Name: name, Schema: schema, Labels: labels})
	}
	return out, nil
}
