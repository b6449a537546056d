//go:build !tinygo && cgo

package hal

import (
	"image"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"sparkrt/internal/buildinfo"
)

// WindowConfig controls the desktop window.
type WindowConfig struct {
	TickHz int
	Scale  int
}

// RunWindow opens a desktop window that shows the framebuffer and the LED and
// forwards keyboard input. It blocks until the window closes or step fails.
func RunWindow(newApp func(HAL) func() error, cfg WindowConfig) error {
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	h := New(cfg.TickHz).(*hostHAL)
	g := &hostGame{h: h, step: newApp(h)}

	ebiten.SetWindowTitle("Spark RT (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*cfg.Scale, h.fb.height*cfg.Scale)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.kbd.poll()
	g.h.clock.advance(time.Now())
	if g.step != nil {
		return g.step()
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)
	dst := g.img.Pix
	for i := 0; i+1 < len(g.scratch); i += 2 {
		r, gg, b := rgb888From565(uint16(g.scratch[i]) | uint16(g.scratch[i+1])<<8)
		j := i * 2
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}
	g.fbImg.WritePixels(dst)
	screen.DrawImage(g.fbImg, nil)

	if on, _ := LEDState(g.h); on {
		vector.DrawFilledCircle(screen, float32(fb.width-8), 8, 4, color.RGBA{R: 0x20, G: 0xE0, B: 0x40, A: 0xFF}, false)
	}
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
