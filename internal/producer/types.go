package producer

import "context"

// #region output
// Output is what a producer returns for one prompt.
type Output struct {
	ResponseText string
	Vector       []float64
	Identity     string // producer identity recorded on the commitment
}

// #endregion output

// #region producer
// Producer turns an assembled prompt plus the originating query into a
// response and its commitment vector. Implementations must be deterministic
// for identical inputs.
type Producer interface {
	Generate(ctx context.Context, prompt, query string) (Output, error)
}

// Func adapts a plain function to Producer.
type Func func(ctx context.Context, prompt, query string) (Output, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt, query string) (Output, error) {
	return f(ctx, prompt, query)
}

// #endregion producer
