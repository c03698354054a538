// Package capture owns the single render-and-readback operation of the
// export pipeline. Capturer is bound to one camera and must only be used from
// the goroutine that drives the scene.
package capture
