package softscene

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/tiff"

	"cardrender/internal/catalog"
	"cardrender/internal/logging"
	"cardrender/internal/scene"
)

// Options configures a Host.
type Options struct {
	// AssetDir resolves relative sprite file names.
	AssetDir string
	Logger   *slog.Logger
}

// Host is a scene.Host drawing one card at a time.
type Host struct {
	layout   Layout
	assetDir string
	logger   *slog.Logger
	render   *renderer

	mu             sync.Mutex
	sprites        map[string]*sprite
	current        *card
	bound          *Target
	backdropHidden bool
}

type sprite struct {
	src image.Image
	buf *gg.ImageBuf
}

var _ scene.Host = (*Host)(nil)

// New builds a host for layout.
func New(layout Layout, opts Options) (*Host, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	fonts, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	logger := logging.NewComponentLogger(opts.Logger, "scene")
	gg.SetLogger(logger)
	return &Host{
		layout:   layout,
		assetDir: opts.AssetDir,
		logger:   logger,
		render:   &renderer{origin: image.Pt(int(layout.OriginX), int(layout.OriginY)), fonts: fonts, faces: map[float64]text.Face{}},
		sprites:  map[string]*sprite{},
	}, nil
}

// Layout returns the host layout.
func (h *Host) Layout() Layout { return h.layout }

// Camera returns the host camera.
func (h *Host) Camera() scene.Camera { return camera{host: h} }

// NewTarget allocates an offscreen frame.
func (h *Host) NewTarget(width, height int) (scene.Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	rect := image.Rect(0, 0, width, height)
	return &Target{host: h, rect: rect, frame: image.NewRGBA(rect)}, nil
}

// LoadCard builds the visual tree for record and makes it the current card.
func (h *Host) LoadCard(ctx context.Context, record catalog.Record) (scene.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &card{id: record.ID}
	if h.layout.Lock != nil {
		c.lock = h.buildElement(*h.layout.Lock, record)
	}
	for _, spec := range h.layout.Elements {
		c.body = append(c.body, h.buildElement(spec, record))
	}
	h.mu.Lock()
	h.current = c
	h.mu.Unlock()
	return c, nil
}

// Prepare hides the backdrop so only the card is captured.
func (h *Host) Prepare() error {
	h.mu.Lock()
	h.backdropHidden = true
	h.mu.Unlock()
	return nil
}

// Restore shows the backdrop again.
func (h *Host) Restore() error {
	h.mu.Lock()
	h.backdropHidden = false
	h.mu.Unlock()
	return nil
}

func (h *Host) buildElement(spec ElementSpec, record catalog.Record) drawable {
	base := element{spec: spec, visible: spec.VisibleField == "" || record.Bool(spec.VisibleField)}
	switch spec.Kind {
	case KindSprite:
		name := spec.Asset
		if spec.Field != "" {
			name = strings.TrimSpace(record.String(spec.Field))
		}
		return &spriteElement{element: base, img: h.sprite(record.ID, spec.Name, name)}
	case KindText:
		value := spec.Text
		if spec.Field != "" {
			value = record.String(spec.Field)
		}
		return &textElement{element: base, text: value}
	default:
		return &shapeElement{element: base, label: spec.Text}
	}
}

// sprite loads and caches an asset. Failures are cached as nil so a missing
// file is reported once.
func (h *Host) sprite(cardID, elementName, name string) *sprite {
	if name == "" {
		return nil
	}
	path := name
	if !filepath.IsAbs(path) && h.assetDir != "" {
		path = filepath.Join(h.assetDir, path)
	}
	h.mu.Lock()
	cached, ok := h.sprites[path]
	h.mu.Unlock()
	if ok {
		return cached
	}

	loaded, err := decodeImage(path)
	if err != nil {
		logging.WarnWithContext(h.logger, "sprite unavailable", "sprite_load_failed",
			logging.String(logging.FieldCardID, cardID),
			logging.String("element", elementName),
			logging.String("asset_path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "element is treated as empty and skipped"),
		)
	}
	h.mu.Lock()
	h.sprites[path] = loaded
	h.mu.Unlock()
	return loaded
}

func decodeImage(path string) (*sprite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &sprite{src: img, buf: gg.ImageBufFromImage(img)}, nil
}

type camera struct {
	host *Host
}

func (c camera) SetTarget(t scene.Target) error {
	h := c.host
	h.mu.Lock()
	defer h.mu.Unlock()
	if t == nil {
		h.bound = nil
		return nil
	}
	target, ok := t.(*Target)
	if !ok || target.host != h {
		return fmt.Errorf("target %T does not belong to this host", t)
	}
	h.bound = target
	return nil
}

// Render draws the current card into the bound target. Render thread only.
func (c camera) Render() error {
	h := c.host
	h.mu.Lock()
	target := h.bound
	current := h.current
	backdrop := h.layout.Backdrop
	if h.backdropHidden {
		backdrop = ""
	}
	h.mu.Unlock()
	if target == nil {
		return errors.New("render: no target bound")
	}

	bounds := target.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	defer func() { _ = dc.Close() }()
	if backdrop != "" {
		dc.ClearWithColor(gg.Hex(backdrop))
	} else {
		dc.Clear()
	}

	if current != nil {
		for i := len(current.body) - 1; i >= 0; i-- {
			e := current.body[i]
			if !e.Visible() {
				continue
			}
			if err := e.draw(dc, h.render); err != nil {
				return fmt.Errorf("render %s/%s: %w", current.id, e.Name(), err)
			}
		}
		if current.lock != nil && current.lock.Visible() {
			if err := current.lock.draw(dc, h.render); err != nil {
				return fmt.Errorf("render %s/%s: %w", current.id, current.lock.Name(), err)
			}
		}
	}

	target.store(toRGBA(dc.Image()))
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Copy(out, image.Point{}, img, img.Bounds(), draw.Src, nil)
	return out
}

// Target holds the last rendered frame.
type Target struct {
	host *Host
	rect image.Rectangle

	mu    sync.Mutex
	frame *image.RGBA
}

// Bounds returns the frame rectangle.
func (t *Target) Bounds() image.Rectangle { return t.rect }

// ReadPixels copies src of the last frame into dst at the given point.
func (t *Target) ReadPixels(src image.Rectangle, dst *image.RGBA, at image.Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frame == nil {
		return errors.New("read pixels: target released")
	}
	if !src.In(t.rect) {
		return fmt.Errorf("read pixels: source %v outside frame %v", src, t.rect)
	}
	draw.Copy(dst, at, t.frame, src, draw.Src, nil)
	return nil
}

// Release drops the frame and unbinds the target if it is bound.
func (t *Target) Release() {
	t.mu.Lock()
	t.frame = nil
	t.mu.Unlock()
	h := t.host
	h.mu.Lock()
	if h.bound == t {
		h.bound = nil
	}
	h.mu.Unlock()
}

func (t *Target) store(frame *image.RGBA) {
	t.mu.Lock()
	t.frame = frame
	t.mu.Unlock()
}

type renderer struct {
	origin image.Point
	fonts  *text.FontSource
	faces  map[float64]text.Face
}

func (r *renderer) pos(spec ElementSpec) (float64, float64) {
	return float64(r.origin.X) + spec.X, float64(r.origin.Y) + spec.Y
}

func (r *renderer) face(size float64) text.Face {
	face, ok := r.faces[size]
	if !ok {
		face = r.fonts.Face(size)
		r.faces[size] = face
	}
	return face
}

func (r *renderer) drawText(dc *gg.Context, spec ElementSpec, value string) {
	x, y := r.pos(spec)
	color := spec.TextColor
	if color == "" {
		color = "#ffffff"
	}
	dc.SetFont(r.face(spec.FontSize))
	dc.SetColor(gg.Hex(color).Color())
	ax := 0.0
	switch spec.Align {
	case AlignCenter:
		x += spec.Width / 2
		ax = 0.5
	case AlignRight:
		x += spec.Width
		ax = 1
	}
	dc.DrawStringAnchored(value, x, y+spec.Height/2, ax, 0.5)
}
