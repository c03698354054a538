package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"cardrender/internal/catalog"
	"cardrender/internal/scene"
)

// FakeElement is a plain element with no content capability.
type FakeElement struct {
	name    string
	visible bool
}

// NewElement returns a visible plain element.
func NewElement(name string) *FakeElement {
	return &FakeElement{name: name, visible: true}
}

func (e *FakeElement) Name() string      { return e.name }
func (e *FakeElement) Visible() bool     { return e.visible }
func (e *FakeElement) SetVisible(v bool) { e.visible = v }

// FakeSprite is an element with sprite content.
type FakeSprite struct {
	FakeElement
	sprite image.Image
}

// NewSprite returns a visible sprite element. An empty sprite has no image.
func NewSprite(name string, empty bool) *FakeSprite {
	s := &FakeSprite{FakeElement: FakeElement{name: name, visible: true}}
	if !empty {
		s.sprite = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return s
}

func (s *FakeSprite) Sprite() image.Image { return s.sprite }

// FakeText is an element with text content.
type FakeText struct {
	FakeElement
	text string
}

// NewText returns a visible text element.
func NewText(name, text string) *FakeText {
	return &FakeText{FakeElement: FakeElement{name: name, visible: true}, text: text}
}

func (t *FakeText) Text() string { return t.text }

// FakeCard is a fixed visual tree.
type FakeCard struct {
	BodyElements []scene.Element
	LockElement  scene.Element
}

func (c *FakeCard) Body() []scene.Element { return c.BodyElements }
func (c *FakeCard) Lock() scene.Element   { return c.LockElement }

// Frame records what one Render call showed.
type Frame struct {
	CardID  string
	Visible []string
}

// FakeHost is an in-memory scene host. Cards are built on demand by the
// Cards factories keyed by record ID; unknown IDs load an empty card. Every
// render fills the target with Fill and records the visible element names.
type FakeHost struct {
	Cards map[string]func() *FakeCard
	Fill  color.RGBA

	// LoadErr fails LoadCard for the given IDs.
	LoadErr map[string]error
	// RenderErrAt fails the Nth render (1-based) when non-zero.
	RenderErrAt int
	// BeforeRender runs at the start of every render, outside the host lock.
	BeforeRender func()

	mu        sync.Mutex
	current   *FakeCard
	currentID string
	frames    []Frame
	renders   int
	prepared  int
	restored  int
	created   int
	released  int
	bound     *fakeTarget
}

// NewFakeHost returns a host drawing opaque frames.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		Cards: map[string]func() *FakeCard{},
		Fill:  color.RGBA{R: 200, G: 40, B: 40, A: 255},
	}
}

// ErrFakeRender is returned by the failing render.
var ErrFakeRender = errors.New("fake render failure")

func (h *FakeHost) Camera() scene.Camera { return fakeCamera{host: h} }

func (h *FakeHost) NewTarget(width, height int) (scene.Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	h.mu.Lock()
	h.created++
	h.mu.Unlock()
	return &fakeTarget{host: h, frame: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

func (h *FakeHost) LoadCard(_ context.Context, record catalog.Record) (scene.Card, error) {
	if err, ok := h.LoadErr[record.ID]; ok {
		return nil, err
	}
	card := &FakeCard{}
	if build, ok := h.Cards[record.ID]; ok {
		card = build()
	}
	h.mu.Lock()
	h.current = card
	h.currentID = record.ID
	h.mu.Unlock()
	return card, nil
}

func (h *FakeHost) Prepare() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prepared++
	return nil
}

func (h *FakeHost) Restore() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.restored++
	return nil
}

// Frames returns the recorded renders.
func (h *FakeHost) Frames() []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Frame(nil), h.frames...)
}

// FrameSummary renders frames as "A:Lock,Icon" lines for compact comparisons.
func (h *FakeHost) FrameSummary() []string {
	frames := h.Frames()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.CardID+":"+strings.Join(f.Visible, ","))
	}
	return out
}

// Counts reports Prepare/Restore calls and live targets.
func (h *FakeHost) Counts() (prepared, restored, liveTargets int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prepared, h.restored, h.created - h.released
}

type fakeCamera struct {
	host *FakeHost
}

func (c fakeCamera) SetTarget(t scene.Target) error {
	c.host.mu.Lock()
	defer c.host.mu.Unlock()
	if t == nil {
		c.host.bound = nil
		return nil
	}
	target, ok := t.(*fakeTarget)
	if !ok {
		return fmt.Errorf("foreign target %T", t)
	}
	c.host.bound = target
	return nil
}

func (c fakeCamera) Render() error {
	h := c.host
	if h.BeforeRender != nil {
		h.BeforeRender()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bound == nil {
		return errors.New("no target bound")
	}
	h.renders++
	if h.RenderErrAt > 0 && h.renders == h.RenderErrAt {
		return ErrFakeRender
	}
	frame := Frame{CardID: h.currentID}
	if h.current != nil {
		if lock := h.current.LockElement; lock != nil && lock.Visible() {
			frame.Visible = append(frame.Visible, lock.Name())
		}
		for _, e := range h.current.BodyElements {
			if e.Visible() {
				frame.Visible = append(frame.Visible, e.Name())
			}
		}
	}
	h.frames = append(h.frames, frame)
	draw.Draw(h.bound.frame, h.bound.frame.Bounds(), image.NewUniform(h.Fill), image.Point{}, draw.Src)
	return nil
}

type fakeTarget struct {
	host  *FakeHost
	frame *image.RGBA
}

func (t *fakeTarget) Bounds() image.Rectangle { return t.frame.Bounds() }

func (t *fakeTarget) ReadPixels(src image.Rectangle, dst *image.RGBA, at image.Point) error {
	draw.Copy(dst, at, t.frame, src, draw.Src, nil)
	return nil
}

func (t *fakeTarget) Release() {
	t.host.mu.Lock()
	defer t.host.mu.Unlock()
	t.host.released++
}
