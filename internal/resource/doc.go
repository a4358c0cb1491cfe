// Package resource resolves cmd://, lib:// and doc:// URIs to artifacts.
//
// Lookups go through a bounded in-memory cache, then the store under the
// user root, and finally the registry: a resource missing on disk is
// fetched from the first scope whose lock manifest lists its path.
package resource
