// Package registry owns the scope registry (registry.json), the per-scope
// lock manifests that list the exact paths each scope may serve, and the
// locator that turns a root-relative resource path into a download URL.
//
// Scopes are consulted in the order they were added. A resource path is
// served by the first scope whose lock manifest lists it literally; no
// other scope is tried.
package registry
