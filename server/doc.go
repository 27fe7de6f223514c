// Package server exposes playback to renderers.
//
// It serves a JSON snapshot of the scheduler, the marker table used to lay
// out the board, playback commands, and a WebSocket feed that pushes a fresh
// snapshot after every frame advance.
package server
