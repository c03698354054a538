package scene

import (
	"context"
	"image"

	"cardrender/internal/catalog"
)

// Element is one toggleable node of a card's visual tree.
type Element interface {
	Name() string
	Visible() bool
	SetVisible(bool)
}

// SpriteContent is implemented by elements that draw an image. A nil sprite
// means the element has nothing to show.
type SpriteContent interface {
	Sprite() image.Image
}

// TextContent is implemented by elements that draw a string.
type TextContent interface {
	Text() string
}

// Card is the visual tree of a loaded card.
type Card interface {
	// Body returns the direct sub-elements in front-to-back declaration order.
	Body() []Element
	// Lock returns the lock overlay, or nil when the card has none.
	Lock() Element
}

// Target is an offscreen render target with pixel readback.
type Target interface {
	Bounds() image.Rectangle
	// ReadPixels copies src from the last rendered frame into dst at the given point.
	ReadPixels(src image.Rectangle, dst *image.RGBA, at image.Point) error
	Release()
}

// Camera renders the scene into its bound target. Render thread only.
type Camera interface {
	// SetTarget binds the camera to t; nil unbinds.
	SetTarget(t Target) error
	Render() error
}

// Host owns the scene the pipeline captures from.
type Host interface {
	Camera() Camera
	NewTarget(width, height int) (Target, error)
	// LoadCard displays record and returns its visual tree.
	LoadCard(ctx context.Context, record catalog.Record) (Card, error)
	// Prepare hides scene content unrelated to the card before a batch.
	Prepare() error
	// Restore undoes Prepare.
	Restore() error
}
