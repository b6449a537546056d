package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"sparkrt/hal"
	"sparkrt/sparkos/threads"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	fatalFontHeight = 10
	fatalFontOffset = 6
)

// onFatal reports a scheduler halt on the log sink and the display, then parks
// the faulting thread for good.
func (sys *System) onFatal(info threads.FatalInfo) {
	sys.fatal.Store(&info)
	lines := fatalLines(info)
	if l := sys.h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}
	if disp := sys.h.Display(); disp != nil {
		if fb := disp.Framebuffer(); fb != nil {
			drawFatal(fb, lines)
		}
	}
	select {}
}

func fatalLines(info threads.FatalInfo) []string {
	lines := []string{
		"Spark RT halted:",
		"thread: " + info.Thread.String(),
		"reason: " + info.Reason,
	}
	if info.Detail != "" {
		lines = append(lines, "detail: "+info.Detail)
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
		}
	}
	return lines
}

// drawFatal renders lines black on white, wrapped to the screen width, and
// presents the frame.
func drawFatal(fb hal.Framebuffer, lines []string) {
	font := &proggy.TinySZ8pt7b
	_, adv := tinyfont.LineWidth(font, "0")
	if adv == 0 || fb.Format() != hal.PixelFormatRGB565 {
		_ = fb.Present()
		return
	}
	fb.ClearRGB(255, 255, 255)

	d := fbPixels{fb: fb}
	cols := fb.Width() / int(adv)
	if cols <= 0 {
		cols = 1
	}
	fg := color.RGBA{A: 255}
	y := 0
	for _, line := range lines {
		for {
			if y+fatalFontHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := splitRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, int16(y+fatalFontOffset), r, fg)
				x += int16(adv)
			}
			y += fatalFontHeight
			line = strings.TrimLeft(rest, " ")
			if line == "" {
				break
			}
		}
	}
	_ = fb.Present()
}

// fbPixels is the minimal tinyfont displayer over a framebuffer.
type fbPixels struct {
	fb hal.Framebuffer
}

func (d fbPixels) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fbPixels) SetPixel(x, y int16, c color.RGBA) {
	hal.SetPixel565(d.fb, int(x), int(y), hal.RGB565(c.R, c.G, c.B))
}

func (d fbPixels) Display() error { return nil }

// splitRunes returns the first n runes of s and the remainder.
func splitRunes(s string, n int) (head, rest string) {
	if utf8.RuneCountInString(s) <= n {
		return s, ""
	}
	i := 0
	for k := 0; k < n; k++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}

