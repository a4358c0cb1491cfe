// Package userdata manages the user root directory (~/.dev or $DEV_HOME):
// the registry and lock files, the resource store for lib/ doc/ and bin/,
// installed environments, and the per-environment .env files that shells
// source to pick up PATH and variables for the selected versions.
package userdata
