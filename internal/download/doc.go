// Package download is the network fetch primitive used by the resource
// resolver, the lock verifier and the install pipeline, plus extraction of
// the archive formats environment engines distribute (.tar.gz, .zip and
// .tar.xz).
package download
