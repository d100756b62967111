// Package httpserver runs the pgtaskd admin listener.
//
// Server binds its listener up front, so a bad address fails Run at once
// instead of from a background goroutine, and serves until the context is
// cancelled. It then drains in-flight requests within the shutdown timeout.
// It does not watch OS signals itself; pgtaskd cancels the context from
// signal.NotifyContext together with the workers and the scheduler:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz probes.
// Readiness runs named Check probes, typically a Postgres ping, and reports
// each result in a HealthStatus body. WriteJSON and WriteError are the
// response helpers shared with the admin API.
package httpserver
