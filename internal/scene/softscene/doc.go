// Package softscene is a software scene host that rasterizes card layouts
// with gogpu/gg.
//
// A layout describes one card as a stack of elements positioned relative to
// a layout origin inside the captured frame. Elements are sprites (images
// loaded from the asset directory), text bound to a catalog field, or plain
// shapes. An optional lock overlay is shown when the card's lock field is
// true, and a backdrop colour fills the rest of the frame outside a batch.
package softscene
