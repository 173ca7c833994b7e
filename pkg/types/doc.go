/*
Package types provides the shared interfaces and data structures of the driver.

# Architecture Overview

The driver is layered over a flat object store:

	┌─────────────────────────────────────────────┐
	│              Driver Facade                  │
	│   (internal/driver, cmd/s3drive)            │
	└─────────────────────────────────────────────┘
	          │          │           │
	┌─────────┴──┐ ┌─────┴─────┐ ┌───┴──────────┐
	│  Listing   │ │ Mutation  │ │ Materialize  │
	└────────────┘ └───────────┘ └──────────────┘
	                     │
	┌─────────────────────────────────────────────┐
	│          types.Backend                      │
	│  (internal/storage/s3, storage/memory)      │
	└─────────────────────────────────────────────┘

# Core Interfaces

Backend Interface:
The capability set consumed from the object store: head, get, put, delete,
copy, prefix listing with an optional delimiter, existence probe, ACL lookup and
a health check. Keys have no directory semantics; folders are emulated above
this layer with zero-length marker objects whose key ends in "/".

CacheRecorder and OperationRecorder:
Narrow hooks through which the caches and the instrumented backend report to
the metrics collector without importing it.

# Interface Contracts

 1. Context Awareness: every backend call accepts a context.Context
 2. Error Handling: backend calls return errors from pkg/errors so callers can
    tell a missing object from a transport failure
 3. Ordering: ListObjects returns objects and common prefixes sorted by key
*/
package types
