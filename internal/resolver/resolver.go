package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ligustah/photofetch/internal/pipeline"
)

// ErrResolver is returned when no task list could be produced. It is fatal
// to a run: nothing is dispatched.
var ErrResolver = errors.New("resolver: failed")

// Resolver turns a search term into download tasks. Count is an upper bound;
// values <= 0 leave the amount to the resolver.
type Resolver interface {
	Resolve(ctx context.Context, term string, count int) ([]pipeline.Task, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, term string, count int) ([]pipeline.Task, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, term string, count int) ([]pipeline.Task, error) {
	return f(ctx, term, count)
}

func resolverError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResolver, fmt.Sprintf(format, args...))
}
