package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Resource is a typed client for one collection endpoint such as /orders.
type Resource[T any] struct {
	c    *Client
	path string
	name string
}

func NewResource[T any](c *Client, path, name string) *Resource[T] {
	return &Resource[T]{c: c, path: path, name: name}
}

func (r *Resource[T]) itemPath(id uuid.UUID) string {
	return r.path + "/" + url.PathEscape(id.String())
}

func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	if err := r.c.do(ctx, request{method: http.MethodGet, path: r.path, resource: r.name}, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *Resource[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var item T
	err := r.c.do(ctx, request{method: http.MethodGet, path: r.itemPath(id), resource: r.name}, &item)
	return item, err
}

func (r *Resource[T]) Create(ctx context.Context, item T) (T, error) {
	var out T
	err := r.c.do(ctx, request{method: http.MethodPost, path: r.path, resource: r.name, body: item}, &out)
	return out, err
}

// Update replaces the entity, failing with a conflict unless the stored
// version still equals expected.
func (r *Resource[T]) Update(ctx context.Context, id uuid.UUID, expected int64, item T) (T, error) {
	var out T
	err := r.c.do(ctx, request{
		method:   http.MethodPut,
		path:     r.itemPath(id),
		resource: r.name,
		ifMatch:  &expected,
		body:     item,
	}, &out)
	return out, err
}

func (r *Resource[T]) Delete(ctx context.Context, id uuid.UUID, expected int64) error {
	return r.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     r.itemPath(id),
		resource: r.name,
		ifMatch:  &expected,
	}, nil)
}

// Action posts a status action such as "approve" with the locally derived
// entity state and returns the backend's stored copy.
func (r *Resource[T]) Action(ctx context.Context, id uuid.UUID, action string, expected int64, item T) (T, error) {
	var out T
	err := r.c.do(ctx, request{
		method:   http.MethodPost,
		path:     r.itemPath(id) + "/" + url.PathEscape(action),
		resource: r.name,
		ifMatch:  &expected,
		body:     item,
	}, &out)
	return out, err
}

// ExportRequest asks the backend to build an export server-side.
type ExportRequest struct {
	Entity  string      `json:"entity"`
	Format  string      `json:"format"`
	Filters interface{} `json:"filters,omitempty"`
	Sort    interface{} `json:"sort,omitempty"`
}

type ExportResponse struct {
	URL string `json:"url"`
}

// RequestExport delegates an export to POST /exports and returns the
// download URL.
func (c *Client) RequestExport(ctx context.Context, req ExportRequest) (string, error) {
	var out ExportResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/exports", resource: "export", body: req}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
