// Package install runs the download, extract and install steps for one
// environment version and guarantees that a failure leaves the previous
// installation, if any, in place.
//
// A fresh install builds the target directory directly. A reinstall builds
// <version>.new next to the active <version> directory, swaps the two by
// renaming (keeping the old one as <version>.old until the new one passes
// the engine's post-install check) and reverses the swap on failure.
package install
