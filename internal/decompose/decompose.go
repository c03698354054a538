package decompose

import (
	"cardrender/internal/scene"
)

// FullLayer names the step that captures the card as normally composed.
const FullLayer = "Full"

// Step is one capture of a card: its file label and the visibility diff that
// must be applied before capturing.
type Step struct {
	Label string
	Layer string
	Show  []scene.Element
	Hide  []scene.Element
}

// Plan is the ordered capture sequence for one card. Steps[0] is always Full.
type Plan struct {
	CardID  string
	Steps   []Step
	Layers  []string
	Skipped []string

	touched []snapshot
}

type snapshot struct {
	element scene.Element
	visible bool
}

// Label builds the file label for a card layer.
func Label(cardID, layer string) string {
	return cardID + "_" + layer
}

// Decompose inspects card and plans its reveal steps. It reads the tree but
// does not modify it; visibility changes happen in Apply.
//
// Meaningful elements (the visible lock overlay first, then visible body
// elements in declaration order) are revealed one at a time from the back:
// each layer step shows exactly one of them. Body elements with an empty
// sprite or empty text are skipped and kept hidden during layer steps.
func Decompose(card scene.Card, cardID string, onlyFull bool) *Plan {
	plan := &Plan{
		CardID: cardID,
		Steps:  []Step{{Label: Label(cardID, FullLayer), Layer: FullLayer}},
	}
	if onlyFull || card == nil {
		return plan
	}

	var layers, skipped []scene.Element
	if lock := card.Lock(); lock != nil && lock.Visible() {
		layers = append(layers, lock)
	}
	for _, element := range card.Body() {
		if element == nil || !element.Visible() {
			continue
		}
		if isEmpty(element) {
			skipped = append(skipped, element)
			plan.Skipped = append(plan.Skipped, element.Name())
			continue
		}
		layers = append(layers, element)
	}
	if len(layers) == 0 {
		return plan
	}

	for _, element := range append(append([]scene.Element(nil), layers...), skipped...) {
		plan.touched = append(plan.touched, snapshot{element: element, visible: element.Visible()})
	}

	last := len(layers) - 1
	for i := last; i >= 0; i-- {
		step := Step{
			Label: Label(cardID, layers[i].Name()),
			Layer: layers[i].Name(),
			Show:  []scene.Element{layers[i]},
		}
		if i == last {
			step.Hide = append(step.Hide, layers[:last]...)
			step.Hide = append(step.Hide, skipped...)
		} else {
			step.Hide = []scene.Element{layers[i+1]}
		}
		plan.Steps = append(plan.Steps, step)
		plan.Layers = append(plan.Layers, step.Layer)
	}
	return plan
}

// Apply sets visibility for step: hides first, then shows.
func (p *Plan) Apply(step Step) {
	for _, element := range step.Hide {
		element.SetVisible(false)
	}
	for _, element := range step.Show {
		element.SetVisible(true)
	}
}

// Restore returns every element the plan may have touched to the visibility
// it had when Decompose ran. Safe to call more than once.
func (p *Plan) Restore() {
	for _, snap := range p.touched {
		snap.element.SetVisible(snap.visible)
	}
}

func isEmpty(element scene.Element) bool {
	if sprite, ok := element.(scene.SpriteContent); ok {
		return sprite.Sprite() == nil
	}
	if text, ok := element.(scene.TextContent); ok {
		return len(text.Text()) == 0
	}
	return false
}
