package captcha

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"strings"
)

// Renderer turns a code into an obfuscated picture. Implementations may use
// rng freely; the same rng is shared with code generation.
type Renderer interface {
	Render(code string, rng *rand.Rand) image.Image
}

// NoiseRenderer scales the bitmap font, rotates and offsets every glyph and
// scatters dots and lines over a light background.
type NoiseRenderer struct {
	Width    int
	Height   int
	Scale    int
	MaxAngle float64
	Dots     int
	Lines    int
}

func DefaultRenderer() NoiseRenderer {
	return NoiseRenderer{Width: 200, Height: 70, Scale: 5, MaxAngle: 0.35, Dots: 220, Lines: 6}
}

func (r NoiseRenderer) Render(code string, rng *rand.Rand) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 240, G: 244, B: 248, A: 255}}, image.Point{}, draw.Src)

	for i := 0; i < r.Dots; i++ {
		img.Set(rng.IntN(r.Width), rng.IntN(r.Height), lightColor(rng))
	}

	cells := len([]rune(code))
	if cells == 0 {
		return img
	}
	cellWidth := r.Width / cells
	glyphW := float64(glyphWidth * r.Scale)
	glyphH := float64(glyphHeight * r.Scale)
	for i, ch := range code {
		angle := (rng.Float64()*2 - 1) * r.MaxAngle
		dx := float64(rng.IntN(7) - 3)
		dy := float64(rng.IntN(11) - 5)
		cx := float64(i*cellWidth) + float64(cellWidth)/2 + dx
		cy := float64(r.Height)/2 + dy
		r.drawGlyph(img, ch, cx, cy, glyphW, glyphH, angle, darkColor(rng))
	}

	for i := 0; i < r.Lines; i++ {
		drawLine(img, rng.IntN(r.Width), rng.IntN(r.Height), rng.IntN(r.Width), rng.IntN(r.Height), midColor(rng))
	}
	return img
}

// drawGlyph maps every destination pixel around the glyph centre back into
// glyph space through the inverse rotation.
func (r NoiseRenderer) drawGlyph(img *image.RGBA, ch rune, cx, cy, w, h, angle float64, c color.Color) {
	sin, cos := math.Sincos(-angle)
	reach := int(math.Ceil(math.Hypot(w, h) / 2))
	for py := int(cy) - reach; py <= int(cy)+reach; py++ {
		for px := int(cx) - reach; px <= int(cx)+reach; px++ {
			fx := float64(px) - cx
			fy := float64(py) - cy
			gx := fx*cos - fy*sin + w/2
			gy := fx*sin + fy*cos + h/2
			if gx < 0 || gy < 0 {
				continue
			}
			if glyphPixel(ch, int(gx)/r.Scale, int(gy)/r.Scale) {
				img.Set(px, py, c)
			}
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func darkColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{R: uint8(rng.IntN(90)), G: uint8(rng.IntN(90)), B: uint8(60 + rng.IntN(100)), A: 255}
}

func midColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{R: uint8(90 + rng.IntN(80)), G: uint8(90 + rng.IntN(80)), B: uint8(90 + rng.IntN(80)), A: 255}
}

func lightColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{R: uint8(160 + rng.IntN(80)), G: uint8(160 + rng.IntN(80)), B: uint8(160 + rng.IntN(80)), A: 255}
}

// TextArt draws the code with the same bitmap font for terminals, giving
// each glyph a random vertical shift and sprinkling noise in the gaps.
func TextArt(code string, rng *rand.Rand) []string {
	const jitter = 2
	const gap = 2
	runes := []rune(code)
	rows := glyphHeight + jitter
	width := len(runes) * (glyphWidth + gap)
	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", width))
	}
	for i, ch := range runes {
		shift := rng.IntN(jitter + 1)
		x0 := i * (glyphWidth + gap)
		for y := 0; y < glyphHeight; y++ {
			for x := 0; x < glyphWidth; x++ {
				if glyphPixel(ch, x, y) {
					grid[y+shift][x0+x] = '█'
				}
			}
		}
	}
	noise := []rune{'·', '˙', '.', '\''}
	for i := 0; i < width*rows/12; i++ {
		x := rng.IntN(width)
		y := rng.IntN(rows)
		if grid[y][x] == ' ' {
			grid[y][x] = noise[rng.IntN(len(noise))]
		}
	}
	out := make([]string, rows)
	for y, row := range grid {
		out[y] = strings.TrimRight(string(row), " ")
	}
	return out
}
