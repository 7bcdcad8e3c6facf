package captcha

import (
	"bytes"
	"image"
	"image/png"
	"math/rand/v2"
	"strings"
	"testing"
)

func newTestChallenge(seed uint64, opts ...Option) *Challenge {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(seed, seed+1)))}, opts...)
	return New(opts...)
}

func TestGenerateProducesCodeFromAlphabet(t *testing.T) {
	c := newTestChallenge(1)
	for i := 0; i < 50; i++ {
		if len(c.code) != CodeLength {
			t.Fatalf("code %q has length %d", c.code, len(c.code))
		}
		for _, r := range c.code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet", c.code, r)
			}
		}
		c.Generate()
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	c := newTestChallenge(2)
	if c.State() != Unverified {
		t.Fatalf("initial state = %s", c.State())
	}
	if !c.Verify(c.code) {
		t.Fatal("exact code must verify")
	}
	if !c.Verified() {
		t.Fatalf("state = %s, want verified", c.State())
	}
	if c.SetInput("changed") {
		t.Fatal("input must be disabled after verification")
	}
}

func TestVerifyIsCaseInsensitive(t *testing.T) {
	c := newTestChallenge(3)
	if !c.Verify("  " + strings.ToLower(c.code) + " ") {
		t.Fatalf("lower-case input for %q should verify", c.code)
	}
}

func TestVerifyMismatchRegenerates(t *testing.T) {
	c := newTestChallenge(4)
	for i := 0; i < 20; i++ {
		before := c.code
		c.SetInput("nope")
		if c.Verify("WRONG!") {
			t.Fatal("wrong input verified")
		}
		if c.State() != Unverified {
			t.Fatalf("state = %s after mismatch", c.State())
		}
		if c.Input() != "" {
			t.Fatalf("input = %q, want cleared", c.Input())
		}
		if c.code == before {
			t.Fatalf("code %q reused after failed attempt", before)
		}
		if c.Verify(before) {
			t.Fatalf("stale code %q accepted", before)
		}
	}
	if c.Failures() == 0 {
		t.Fatal("expected failures to be counted")
	}
}

func TestRefresh(t *testing.T) {
	c := newTestChallenge(5)
	before := c.code
	c.SetInput("ABC")
	if !c.Refresh() {
		t.Fatal("refresh before verification must succeed")
	}
	if c.code == before || c.Input() != "" {
		t.Fatalf("refresh kept code %q or input %q", c.code, c.Input())
	}

	c.Verify(c.code)
	verifiedCode := c.code
	if c.Refresh() {
		t.Fatal("refresh after verification must be refused")
	}
	if c.code != verifiedCode || !c.Verified() {
		t.Fatal("refused refresh must not change state")
	}
}

type recordingRenderer struct {
	codes []string
}

func (r *recordingRenderer) Render(code string, _ *rand.Rand) image.Image {
	r.codes = append(r.codes, code)
	return image.NewGray(image.Rect(0, 0, 4, 2))
}

func TestRendererIsSwappable(t *testing.T) {
	rec := &recordingRenderer{}
	c := newTestChallenge(6, WithRenderer(rec))
	c.Refresh()
	if len(rec.codes) != 2 {
		t.Fatalf("renderer called %d times, want 2", len(rec.codes))
	}
	if rec.codes[1] != c.code {
		t.Fatalf("renderer saw %q, current code %q", rec.codes[1], c.code)
	}
	if got := c.Image().Bounds().Dx(); got != 4 {
		t.Fatalf("image width = %d", got)
	}
}

func TestWritePNG(t *testing.T) {
	c := newTestChallenge(7)
	var buf bytes.Buffer
	if err := c.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	def := DefaultRenderer()
	if b := img.Bounds(); b.Dx() != def.Width || b.Dy() != def.Height {
		t.Fatalf("bounds = %v", b)
	}
}

func TestNoiseRendererDrawsGlyphs(t *testing.T) {
	r := DefaultRenderer()
	r.Dots = 0
	r.Lines = 0
	img := r.Render("W8", rand.New(rand.NewPCG(9, 9)))
	bg := img.At(0, 0)
	dark := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.At(x, y) != bg {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatal("expected glyph pixels on the image")
	}
}

func TestArt(t *testing.T) {
	c := newTestChallenge(8)
	art := c.Art()
	if len(art) != glyphHeight+2 {
		t.Fatalf("art rows = %d", len(art))
	}
	if !strings.Contains(strings.Join(art, "\n"), "█") {
		t.Fatal("art has no glyph cells")
	}
}

func TestGlyphTableIsComplete(t *testing.T) {
	for _, r := range Alphabet {
		g, ok := glyphs[r]
		if !ok {
			t.Fatalf("missing glyph %q", r)
		}
		for i, row := range g {
			if len(row) != glyphWidth {
				t.Fatalf("glyph %q row %d has width %d", r, i, len(row))
			}
		}
	}
}
