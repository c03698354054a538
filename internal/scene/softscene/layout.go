package softscene

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Element kinds.
const (
	KindSprite = "sprite"
	KindText   = "text"
	KindShape  = "shape"
)

// Text alignments.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

//go:embed default_layout.toml
var defaultLayoutTOML []byte

// ElementSpec positions one element relative to the layout origin.
type ElementSpec struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	// Field binds the element to a record field: the text for text elements,
	// the asset file name for sprites.
	Field string `toml:"field"`
	// Asset is a fixed sprite file, used when Field is empty or blank.
	Asset string `toml:"asset"`
	// Text is a fixed string, used when Field is empty. Shapes draw it as a label.
	Text string `toml:"text"`
	// VisibleField hides the element unless the record field is true.
	VisibleField string `toml:"visible_field"`

	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
	Radius float64 `toml:"radius"`

	Color     string  `toml:"color"`
	TextColor string  `toml:"text_color"`
	FontSize  float64 `toml:"font_size"`
	Align     string  `toml:"align"`
}

// Layout describes how every card is drawn.
type Layout struct {
	OriginX  float64 `toml:"origin_x"`
	OriginY  float64 `toml:"origin_y"`
	Width    float64 `toml:"width"`
	Height   float64 `toml:"height"`
	Backdrop string  `toml:"backdrop"`

	Lock     *ElementSpec  `toml:"lock"`
	Elements []ElementSpec `toml:"elements"`
}

// DefaultLayout returns the built-in layout.
func DefaultLayout() Layout {
	layout, err := ParseLayout(defaultLayoutTOML)
	if err != nil {
		panic(fmt.Sprintf("softscene: built-in layout invalid: %v", err))
	}
	return layout
}

// LoadLayout reads a TOML layout. An empty path yields the built-in layout.
func LoadLayout(path string) (Layout, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	layout, err := ParseLayout(data)
	if err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return layout, nil
}

// ParseLayout decodes and validates a TOML layout.
func ParseLayout(data []byte) (Layout, error) {
	var layout Layout
	if err := toml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	layout.normalize()
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func (l *Layout) normalize() {
	normalizeSpec := func(spec *ElementSpec) {
		spec.Name = strings.TrimSpace(spec.Name)
		spec.Kind = strings.ToLower(strings.TrimSpace(spec.Kind))
		spec.Align = strings.ToLower(strings.TrimSpace(spec.Align))
		if spec.Align == "" {
			spec.Align = AlignLeft
		}
		if spec.FontSize <= 0 {
			spec.FontSize = 24
		}
	}
	if l.Lock != nil {
		normalizeSpec(l.Lock)
	}
	for i := range l.Elements {
		normalizeSpec(&l.Elements[i])
	}
}

// Validate checks names, kinds, sizes and colours.
func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout size must be positive, got %gx%g", l.Width, l.Height)
	}
	if l.Backdrop != "" && !validHex(l.Backdrop) {
		return fmt.Errorf("backdrop: invalid colour %q", l.Backdrop)
	}
	if len(l.Elements) == 0 {
		return errors.New("layout has no elements")
	}
	seen := make(map[string]struct{}, len(l.Elements)+1)
	specs := l.Elements
	if l.Lock != nil {
		specs = append([]ElementSpec{*l.Lock}, specs...)
	}
	for i, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("element %d: name required", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("element %q: duplicate name", spec.Name)
		}
		seen[spec.Name] = struct{}{}
		switch spec.Kind {
		case KindSprite, KindText, KindShape:
		default:
			return fmt.Errorf("element %q: unknown kind %q", spec.Name, spec.Kind)
		}
		if spec.Width <= 0 || spec.Height <= 0 {
			return fmt.Errorf("element %q: size must be positive", spec.Name)
		}
		switch spec.Align {
		case AlignLeft, AlignCenter, AlignRight:
		default:
			return fmt.Errorf("element %q: unknown align %q", spec.Name, spec.Align)
		}
		for _, c := range []string{spec.Color, spec.TextColor} {
			if c != "" && !validHex(c) {
				return fmt.Errorf("element %q: invalid colour %q", spec.Name, c)
			}
		}
	}
	return nil
}

func validHex(value string) bool {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
