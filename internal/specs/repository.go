package specs

import (
	"context"

	"github.com/sustainhub/sustainability-hub/internal/backend"
)

// Repository talks to the industries and business-specifications endpoints.
type Repository struct {
	client *backend.Client
}

// NewRepository constructs a repository.
func NewRepository(client *backend.Client) *Repository {
	return &Repository{client: client}
}

// Industries returns the industry identifiers offered by the API.
func (r *Repository) Industries(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.client.GetJSON(ctx, "/api/industries", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Create submits a business specification.
func (r *Repository) Create(ctx context.Context, spec BusinessSpecification) error {
	return r.client.PostJSON(ctx, "/api/business-specifications", spec, nil)
}
