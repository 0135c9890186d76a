/*
Package session serializes access to checkpointed runs.

A Manager owns one in-process lock per active session, reference counted so
idle sessions leave nothing behind, and optionally a distributed lock so that
several arbor replicas sharing a store never resume the same session twice.
*/
package session
