// ABOUTME: Model catalog backed by the backend's live /api/tags response.
// ABOUTME: Supports lookup by exact name and listing, refreshed on demand rather than hardcoded.

package llm

import "context"

// ModelInfo describes a single model as reported by the backend's catalog.
type ModelInfo struct {
	Name       string
	ModifiedAt string
	Size       int64
	Digest     string
}

// Catalog is a snapshot of the backend's model catalog.
type Catalog struct {
	models []ModelInfo
}

// FetchCatalog queries GET /api/tags and builds a Catalog from the response.
func FetchCatalog(ctx context.Context, c *Client) (*Catalog, error) {
	tags, err := c.Tags(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{
			Name:       m.Name,
			ModifiedAt: m.ModifiedAt,
			Size:       m.Size,
			Digest:     m.Digest,
		})
	}
	return &Catalog{models: models}, nil
}

// Get looks up a model by its exact name. Returns nil if not present.
func (c *Catalog) Get(name string) *ModelInfo {
	if c == nil {
		return nil
	}
	for i := range c.models {
		if c.models[i].Name == name {
			return &c.models[i]
		}
	}
	return nil
}

// List returns all models currently known to the catalog.
func (c *Catalog) List() []ModelInfo {
	if c == nil {
		return nil
	}
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// Names returns just the model names, in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.models))
	for i, m := range c.models {
		out[i] = m.Name
	}
	return out
}
