/*
Package observability turns engine lifecycle hooks into metrics and audit logs.

Metrics registers the arbor_* prometheus collectors and exposes them as
domain.LifecycleHooks; LogHooks writes one structured line per event.
Both can be combined with LifecycleHooks.Merge.
*/
package observability
