package gemini

import (
	"context"
	"fmt"
	"strings"

	"tryon-studio/internal/tryon"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

func NewGenerator(ctx context.Context, backend string, opts Options) (tryon.Generator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, tryon.ErrNotConfigured
	}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendREST:
		return New(opts), nil
	case BackendSDK:
		client, err := NewSDK(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", backend)
	}
}
