// Package core contains the canonical sync-engine domain: queue and conflict
// entities, the field differ, the retry scheduler, and the services that
// coordinate conflict resolution and propagation retries. Adapters (stores,
// transports, workers) depend on this package; core must not depend on them.
package core
