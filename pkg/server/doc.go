// Package server exposes the flag store over HTTP.
//
// The service is the boundary for external writers: experiment platforms,
// tag managers, and scripts mutate the mapping through a small REST surface,
// and live consumers follow changes over a WebSocket feed where every event
// carries the full snapshot and its version.
//
//	store := flags.SharedStore()
//	srv := server.New(store, server.DefaultConfig(), nil)
//	srv.Use(middleware.Metrics())
//	srv.Use(middleware.OpenTelemetry())
//	log.Fatal(srv.ListenAndServe())
package server
