package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"cardrender/internal/scene"
)

// SampleLabel is the label of the single image produced by Sample.
const SampleLabel = "Sample"

// ErrClosed reports a capture attempted without an open target.
var ErrClosed = errors.New("capture target not open")

// Device is the part of a scene host the capturer needs.
type Device interface {
	Camera() scene.Camera
	NewTarget(width, height int) (scene.Target, error)
}

// Settings is the capture geometry.
type Settings struct {
	CaptureWidth  int
	CaptureHeight int
	ExportWidth   int
	ExportHeight  int
	// Source is the rectangle read back from the captured frame.
	Source image.Rectangle
	// Dest is where Source lands in the export image.
	Dest image.Point
}

// Validate rejects non-positive resolutions, an empty source rectangle, a
// source that does not fit in the captured frame and a destination outside
// the export buffer.
func (s Settings) Validate() error {
	if s.CaptureWidth <= 0 || s.CaptureHeight <= 0 {
		return fmt.Errorf("capture resolution %dx%d must be positive", s.CaptureWidth, s.CaptureHeight)
	}
	if s.ExportWidth <= 0 || s.ExportHeight <= 0 {
		return fmt.Errorf("export resolution %dx%d must be positive", s.ExportWidth, s.ExportHeight)
	}
	if s.Source.Empty() {
		return fmt.Errorf("source rectangle %v is empty", s.Source)
	}
	frame := image.Rect(0, 0, s.CaptureWidth, s.CaptureHeight)
	if !s.Source.In(frame) {
		return fmt.Errorf("source rectangle %v exceeds capture resolution %dx%d", s.Source, s.CaptureWidth, s.CaptureHeight)
	}
	export := image.Rect(0, 0, s.ExportWidth, s.ExportHeight)
	if !s.Dest.In(export) {
		return fmt.Errorf("destination %v lies outside export resolution %dx%d", s.Dest, s.ExportWidth, s.ExportHeight)
	}
	return nil
}

// Image is a captured frame: tightly packed RGBA rows of Width*4 bytes.
type Image struct {
	Label  string
	Width  int
	Height int
	Pix    []byte
}

// RGBA wraps the pixels without copying.
func (img Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// Capturer renders one frame into an offscreen target and reads back the
// source rectangle into an export-sized buffer. It must be driven from the
// render goroutine; the mutex only guards against accidental overlap.
type Capturer struct {
	mu       sync.Mutex
	device   Device
	settings Settings
	target   scene.Target
	export   *image.RGBA
}

// New builds a closed capturer.
func New(device Device, settings Settings) *Capturer {
	return &Capturer{device: device, settings: settings}
}

// Settings returns the current geometry.
func (c *Capturer) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Open allocates the capture target and export buffer. Opening an open
// capturer is a no-op.
func (c *Capturer) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Capturer) openLocked() error {
	if c.target != nil {
		return nil
	}
	if err := c.settings.Validate(); err != nil {
		return err
	}
	target, err := c.device.NewTarget(c.settings.CaptureWidth, c.settings.CaptureHeight)
	if err != nil {
		return fmt.Errorf("create capture target: %w", err)
	}
	c.target = target
	c.export = image.NewRGBA(image.Rect(0, 0, c.settings.ExportWidth, c.settings.ExportHeight))
	return nil
}

// Reset applies new settings. An open capturer rebuilds its target.
func (c *Capturer) Reset(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	wasOpen := c.target != nil
	c.closeLocked()
	c.settings = settings
	if wasOpen {
		return c.openLocked()
	}
	return nil
}

// Capture renders one frame and returns a copy of the export buffer tagged
// with label.
func (c *Capturer) Capture(label string) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return Image{}, ErrClosed
	}

	camera := c.device.Camera()
	if err := camera.SetTarget(c.target); err != nil {
		return Image{}, fmt.Errorf("capture %s: bind target: %w", label, err)
	}
	renderErr := camera.Render()
	if renderErr == nil {
		clear(c.export.Pix)
		renderErr = c.target.ReadPixels(c.settings.Source, c.export, c.settings.Dest)
	}
	if err := camera.SetTarget(nil); err != nil && renderErr == nil {
		renderErr = fmt.Errorf("unbind target: %w", err)
	}
	if renderErr != nil {
		return Image{}, fmt.Errorf("capture %s: %w", label, renderErr)
	}

	pix := make([]byte, len(c.export.Pix))
	copy(pix, c.export.Pix)
	return Image{
		Label:  label,
		Width:  c.settings.ExportWidth,
		Height: c.settings.ExportHeight,
		Pix:    pix,
	}, nil
}

// Sample captures whatever the scene currently shows.
func (c *Capturer) Sample() (Image, error) {
	return c.Capture(SampleLabel)
}

// Close releases the target. Safe to call on a closed capturer.
func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Capturer) closeLocked() {
	if c.target != nil {
		c.target.Release()
		c.target = nil
	}
	c.export = nil
}
