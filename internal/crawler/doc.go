// Package crawler defines the types and interfaces shared by the frontier,
// worker, task pool and orchestrator: the fetch and extraction capabilities,
// the frontier contract, and URL normalization.
package crawler
