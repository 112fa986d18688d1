// Package middleware provides HTTP middleware for the transcode API.
//
// Logger writes one W3C Extended Log Format line per request. Metrics
// records request counts and latencies labelled by the gorilla/mux route
// template, so job IDs never become label values; it must be installed with
// Router.Use so the matched route is known.
package middleware
