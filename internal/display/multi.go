// Package display holds the collaborators that consume the render loop's
// band vectors: the terminal bar chart, transport sinks and a fan-out.
package display

import (
	"errors"

	"barviz/internal/render"
)

// Multi fans every call out to several displays in order. Every display is
// called even when an earlier one fails; the errors are joined.
type Multi []render.Display

// Init implements render.Display.
func (m Multi) Init(bands []float64, cal render.Calibration) error {
	var errs []error
	for _, d := range m {
		if err := d.Init(bands, cal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Update implements render.Display.
func (m Multi) Update(bands []float64) error {
	var errs []error
	for _, d := range m {
		if err := d.Update(bands); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fail implements render.Display.
func (m Multi) Fail(err error) {
	for _, d := range m {
		d.Fail(err)
	}
}

var _ render.Display = Multi(nil)
