// Package http exposes an arbor engine over a JSON API routed with chi.
//
// Sessions are addressed by id in the path. State changes made by the run are
// pushed to subscribers of GET /sessions/{id}/events as server-sent events.
package http
