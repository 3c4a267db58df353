package mysql

import "context"

type workerKey struct{}

// WithWorker attaches a worker identity to ctx. Components that share one
// connection handle across calls name their worker once and carry it in
// every request context.
func WithWorker(ctx context.Context, worker string) context.Context {
	return context.WithValue(ctx, workerKey{}, worker)
}

// WorkerFromContext returns the worker identity in ctx, or "".
func WorkerFromContext(ctx context.Context) string {
	worker, _ := ctx.Value(workerKey{}).(string)
	return worker
}
