// Package scene defines the rendering collaborator the export pipeline drives:
// a host that shows one card at a time, a camera, and offscreen targets with
// pixel readback. Implementations must be used from a single render goroutine.
package scene
