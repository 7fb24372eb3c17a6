package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
)

// GetJSON performs a GET and decodes the JSON payload into T.
func GetJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return doJSON[T](ctx, c, nethttp.MethodGet, req)
}

// PostJSON performs a POST and decodes the JSON payload into T.
func PostJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return doJSON[T](ctx, c, nethttp.MethodPost, req)
}

// PutJSON performs a PUT and decodes the JSON payload into T.
func PutJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return doJSON[T](ctx, c, nethttp.MethodPut, req)
}

// PatchJSON performs a PATCH and decodes the JSON payload into T.
func PatchJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return doJSON[T](ctx, c, nethttp.MethodPatch, req)
}

// DeleteJSON performs a DELETE and decodes the JSON payload into T.
// An empty body leaves T at its zero value.
func DeleteJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return doJSON[T](ctx, c, nethttp.MethodDelete, req)
}

func doJSON[T any](ctx context.Context, c Client, method string, req *Request) (T, error) {
	var out T
	resp, err := c.Do(ctx, method, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode %s %s response: %w", method, req.Path, err)
	}
	return out, nil
}
