package ps

import (
	"image/color"

	"sparkrt/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay adapts a RGB565 hal.Framebuffer to the tinyterm displayer.
type fbDisplay struct {
	fb hal.Framebuffer
}

func (d *fbDisplay) usable() bool {
	return d.fb != nil && d.fb.Format() == hal.PixelFormatRGB565 && d.fb.Buffer() != nil
}

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if !d.usable() {
		return
	}
	hal.SetPixel565(d.fb, int(x), int(y), hal.RGB565(c.R, c.G, c.B))
}

func (d *fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	x0, y0 := clamp(int(x), d.fb.Width()), clamp(int(y), d.fb.Height())
	x1, y1 := clamp(int(x)+int(width), d.fb.Width()), clamp(int(y)+int(height), d.fb.Height())
	px := hal.RGB565(c.R, c.G, c.B)
	for py := y0; py < y1; py++ {
		for pxl := x0; pxl < x1; pxl++ {
			hal.SetPixel565(d.fb, pxl, py, px)
		}
	}
	return nil
}

// ScrollUp moves the picture up by lines rows and clears the exposed band.
func (d *fbDisplay) ScrollUp(lines int16, bg color.RGBA) error {
	if !d.usable() || lines <= 0 {
		return nil
	}
	h := d.fb.Height()
	n := int(lines)
	if n >= h {
		return d.FillRectangle(0, 0, int16(d.fb.Width()), int16(h), bg)
	}
	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	copy(buf, buf[n*stride:h*stride])
	return d.FillRectangle(0, int16(h-n), int16(d.fb.Width()), int16(n), bg)
}

func (d *fbDisplay) SetScroll(int16) {}

func (d *fbDisplay) SetRotation(drivers.Rotation) error { return nil }

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
