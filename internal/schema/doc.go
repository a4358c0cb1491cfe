// Package schema validates the JSON documents dev keeps under the user
// root (registry.json, registry lock manifests and version caches)
// against embedded JSON schemas.
package schema
