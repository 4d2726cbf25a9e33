// Package cli is the GoTogether command-line client: registration, login,
// contact verification and profile image upload on top of the session
// manager. Every command shares one persisted session, so a login in one
// invocation is reused by the next.
package cli
