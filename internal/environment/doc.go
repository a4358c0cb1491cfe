// Package environment defines what an environment engine (a plugin that
// knows how to list, download and install one runtime or toolchain) must
// provide, and the version machinery shared by every engine: the Version
// type, the per-environment version cache and the resolver that turns a
// request such as "latest" or "18" into a concrete release.
package environment
