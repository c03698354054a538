package softscene

import (
	"image"

	"github.com/gogpu/gg"

	"cardrender/internal/scene"
)

type element struct {
	spec    ElementSpec
	visible bool
}

func (e *element) Name() string      { return e.spec.Name }
func (e *element) Visible() bool     { return e.visible }
func (e *element) SetVisible(v bool) { e.visible = v }

type drawable interface {
	scene.Element
	draw(dc *gg.Context, r *renderer) error
}

type spriteElement struct {
	element
	img *sprite
}

// Sprite returns nil when the card has no asset for this element or the
// asset could not be loaded.
func (s *spriteElement) Sprite() image.Image {
	if s.img == nil {
		return nil
	}
	return s.img.src
}

func (s *spriteElement) draw(dc *gg.Context, r *renderer) error {
	if s.img == nil {
		return nil
	}
	x, y := r.pos(s.spec)
	dc.DrawImageEx(s.img.buf, gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  s.spec.Width,
		DstHeight: s.spec.Height,
		Opacity:   1,
	})
	return nil
}

type textElement struct {
	element
	text string
}

func (t *textElement) Text() string { return t.text }

func (t *textElement) draw(dc *gg.Context, r *renderer) error {
	if t.text == "" {
		return nil
	}
	r.drawText(dc, t.spec, t.text)
	return nil
}

// shapeElement has no content capability and always counts as a layer.
type shapeElement struct {
	element
	label string
}

func (s *shapeElement) draw(dc *gg.Context, r *renderer) error {
	x, y := r.pos(s.spec)
	color := s.spec.Color
	if color == "" {
		color = "#000000"
	}
	dc.SetColor(gg.Hex(color).Color())
	if s.spec.Radius > 0 {
		dc.DrawRoundedRectangle(x, y, s.spec.Width, s.spec.Height, s.spec.Radius)
	} else {
		dc.DrawRectangle(x, y, s.spec.Width, s.spec.Height)
	}
	if err := dc.Fill(); err != nil {
		return err
	}
	if s.label != "" {
		r.drawText(dc, s.spec, s.label)
	}
	return nil
}

type card struct {
	id   string
	body []drawable
	lock drawable
}

func (c *card) Body() []scene.Element {
	out := make([]scene.Element, len(c.body))
	for i, e := range c.body {
		out[i] = e
	}
	return out
}

func (c *card) Lock() scene.Element {
	if c.lock == nil {
		return nil
	}
	return c.lock
}
