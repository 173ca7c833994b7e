/*
Package metrics provides Prometheus metrics for the storage driver.

# Overview

The Collector owns a private Prometheus registry and records backend round
trips, cache lookups, identifier remaps and errors. It also keeps a small
in-process summary per operation for the /debug/operations endpoint.

	┌──────────────────────┐      ┌─────────────────────┐
	│  InstrumentedBackend │─────▶│      Collector      │
	│  (types.Backend)     │      │  - operations_total │
	└──────────┬───────────┘      │  - duration/size    │
	           │                  │  - cache_requests   │
	┌──────────▼───────────┐      │  - identifier_remaps│
	│  S3 or memory store  │      │  - errors_total     │
	└──────────────────────┘      └──────────┬──────────┘
	                                         │
	                              ┌──────────▼──────────┐
	                              │  HTTP endpoints     │
	                              │  /metrics  /health  │
	                              │  /debug/operations  │
	                              └─────────────────────┘

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Address:   ":9464",
		Path:      "/metrics",
		Namespace: "s3drive",
	})
	if err != nil {
		return err
	}
	backend = metrics.Instrument(backend, collector)

The Collector satisfies types.OperationRecorder and types.CacheRecorder, so
it can be handed to the backend decorator and to the driver caches alike.

# Errors

Errors carrying a DriverError are labelled with their lower-cased code
(object_not_found, access_denied, ...). Other errors are classified from
their text into timeout, connection, not_found, permission, throttling or
other.

# Disabled collection

A collector built from a disabled Config accepts every call and records
nothing; Handler then serves 404.
*/
package metrics
