/*
Package observability turns drawer lifecycle hooks into Prometheus metrics and
structured audit logs.

Both are plain domain.LifecycleHooks values and can be merged:

	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	d, _ := drawer.Open(ctx, id, q, svc, drawer.WithHooks(hooks))
*/
package observability
