//go:build tinygo && bootdebug

package app

import (
	"image/color"
	"machine"
	"sync"
	"time"

	"sparkrt/hal"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	bootMu   sync.Mutex
	bootLast string
	bootOnce sync.Once
)

// bootStep shows the boot phase on screen. A background goroutine repeats the
// last phase on the UART and USB CDC.
func bootStep(h hal.HAL, msg string) {
	bootMu.Lock()
	bootLast = msg
	bootMu.Unlock()

	bootOnce.Do(func() { go bootRepeat(h.Logger()) })

	if disp := h.Display(); disp != nil {
		if fb := disp.Framebuffer(); fb != nil && fb.Buffer() != nil {
			fb.ClearRGB(0, 0, 0)
			fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
			tinyfont.WriteLine(fbPixels{fb: fb}, &proggy.TinySZ8pt7b, 0, 12, "Spark RT boot", fg)
			tinyfont.WriteLine(fbPixels{fb: fb}, &proggy.TinySZ8pt7b, 0, 28, msg, fg)
			_ = fb.Present()
		}
	}
}

func bootRepeat(l hal.Logger) {
	for {
		bootMu.Lock()
		line := "bootdiag: " + bootLast
		bootMu.Unlock()

		if l != nil {
			l.WriteLineString(line)
		}
		if usb := machine.USBCDC; usb != nil {
			_, _ = usb.Write([]byte(line + "\r\n"))
		}
		time.Sleep(250 * time.Millisecond)
	}
}
