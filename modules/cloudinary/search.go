package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SearchParams mirrors the body of the resources/search endpoint.
type SearchParams struct {
	Expression string              `json:"expression,omitempty"`
	MaxResults int                 `json:"max_results,omitempty"`
	WithFields []string            `json:"with_field,omitempty"`
	SortBy     []map[string]string `json:"sort_by,omitempty"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// Search runs a search query and returns the raw result envelope.
func (c *Client) Search(ctx context.Context, params SearchParams) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("cloudinary %s: encode query: %w", opSearch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/resources/search"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cloudinary %s: build request: %w", opSearch, err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(opSearch, req)
}

// ExactMatch builds an expression matching field against value exactly.
func ExactMatch(field, value string) string {
	return field + `="` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}
