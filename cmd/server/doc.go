// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Command server runs the Blogrec recommendation service.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging
//  3. DuckDB ledger, corpus and recommendation cache
//  4. BadgerDB checkpoint store
//  5. Recommendation engine (RBM, content similarity, popularity)
//  6. Action event pipeline (gochannel or NATS), when enabled
//  7. HTTP API
//  8. Supervisor tree, which runs everything until SIGINT or SIGTERM
//
// Example:
//
//	export DUCKDB_PATH=/var/lib/blogrec/blogrec.duckdb
//	export CHECKPOINT_PATH=/var/lib/blogrec/checkpoints
//	export EVENTS_TRANSPORT=nats NATS_URL=nats://nats:4222
//	./server
package main
