// Package state keeps short per-user conversation steps (a prompt waiting for
// free text) and dispatches incoming text to the handler of the current step.
package state
