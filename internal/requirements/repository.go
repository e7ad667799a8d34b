package requirements

import (
	"context"
	"net/url"

	"github.com/sustainhub/sustainability-hub/internal/backend"
)

const collectionPath = "/api/requirements"

// Repository reads and writes requirements through the REST API.
type Repository struct {
	client *backend.Client
}

// NewRepository constructs a repository.
func NewRepository(client *backend.Client) *Repository {
	return &Repository{client: client}
}

// List fetches every requirement. A null body is treated as an empty list.
func (r *Repository) List(ctx context.Context) ([]Requirement, error) {
	var items []Requirement
	if err := r.client.GetJSON(ctx, collectionPath, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Requirement{}
	}
	return items, nil
}

// Create adds a requirement.
func (r *Repository) Create(ctx context.Context, draft Draft) error {
	return r.client.PostJSON(ctx, collectionPath, draft, nil)
}

// Toggle flips the completion flag of requirement id.
func (r *Repository) Toggle(ctx context.Context, id string) error {
	return r.client.Put(ctx, collectionPath+"/"+url.PathEscape(id))
}
