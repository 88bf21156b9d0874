package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/errors"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string // required
}

// GetOutput contains the result of the Get operation.
type GetOutput struct {
	Capture *capture.Record `json:"capture"`
}

// Get retrieves a capture by ID.
func Get(ctx context.Context, env *Env, input GetInput) (*GetOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := env.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetOutput{Capture: r}, nil
}
