// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

/*
Package services adapts Blogrec components to suture.Service.

Each wrapper translates a component lifecycle (a ticker loop, a blocking
Run, ListenAndServe) into Serve(ctx) and implements fmt.Stringer so the
supervisor can name it in logs.

  - RefreshService drives Engine.RefreshIfNeeded on an interval.
  - CorpusSyncService normalizes posts added to the corpus.
  - CheckpointGCService reclaims badger value log space.
  - EventsService runs the watermill action router.
  - HTTPServerService runs the HTTP server with graceful shutdown.

The components are reached through small interfaces declared here, so the
package imports neither the engine nor the transport.
*/
package services
