/*
Package observability turns run lifecycle hooks into Prometheus metrics and
structured log lines.

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	bot, err := chatflow.New(dir, platform, store, chatflow.WithLifecycleHooks(hooks))
*/
package observability
