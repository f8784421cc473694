package region

import (
	"fmt"
)

// Window selects the pixels to extract relative to an anchor edge.
//
// The explicit form covers [anchor+Start, anchor+End).  Start may be negative,
// reaching across the anchor edge into the neighbouring structure, and End may
// exceed the length of the region it is applied to.
//
// The from-end form selects the last FromEnd pixels of the span the extractor
// anchors on, so the extracted size is the requested count regardless of the
// size of any one region.
type Window struct {
	Start int `yaml:"start" koanf:"start" json:"start"`
	End   int `yaml:"end" koanf:"end" json:"end"`

	// FromEnd, when positive, selects the from-end form and Start and End are ignored
	FromEnd int `yaml:"fromEnd" koanf:"fromEnd" json:"fromEnd"`
}

// Pixels returns an explicit window over [start, end)
func Pixels(start, end int) Window {
	return Window{Start: start, End: end}
}

// PixelsFromEnd returns a window over the last n pixels of the anchored span
func PixelsFromEnd(n int) Window {
	return Window{FromEnd: n}
}

// IsFromEnd is true for windows made by PixelsFromEnd
func (w Window) IsFromEnd() bool {
	return w.FromEnd > 0
}

// Size is the number of pixels selected along the extraction axis
func (w Window) Size() int {
	if w.IsFromEnd() {
		return w.FromEnd
	}
	return w.End - w.Start
}

// Validate returns ErrInvalidRegion for empty or inverted windows
func (w Window) Validate() error {
	if w.FromEnd < 0 {
		return fmt.Errorf("%w: negative from-end count %d", ErrInvalidRegion, w.FromEnd)
	}
	if !w.IsFromEnd() && w.Start >= w.End {
		return fmt.Errorf("%w: window %s requires start < end", ErrInvalidRegion, w)
	}
	return nil
}

// Resolve converts the window into an explicit (start, end) pair given the
// length of the span that from-end windows count back from
func (w Window) Resolve(span int) (int, int) {
	if w.IsFromEnd() {
		return span - w.FromEnd, span
	}
	return w.Start, w.End
}

func (w Window) String() string {
	if w.IsFromEnd() {
		return fmt.Sprintf("last %d pixels", w.FromEnd)
	}
	return fmt.Sprintf("[%d, %d)", w.Start, w.End)
}
