// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

/*
Package supervisor runs Blogrec's long-lived components under a suture v4
supervision tree.

	blogrec (root)
	├── data-layer
	│   ├── recommend-refresh   scheduled refresh cycle
	│   ├── corpus-sync         normalizes newly added posts
	│   └── checkpoint-gc       badger value log GC
	├── messaging-layer
	│   └── events-<transport>  watermill router feeding the ratings ledger
	└── api-layer
	    └── http-server

Each layer is its own supervisor so that repeated failures in one layer
back off without restarting the others. Services that cannot recover by
restarting (a corrupt checkpoint, a router that was already closed) return
suture.ErrDoNotRestart and stay down until the process is restarted.

Service wrappers live in the services subpackage.
*/
package supervisor
