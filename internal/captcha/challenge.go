// Package captcha implements the human check that gates SR submission.
//
// A Challenge is either unverified or verified. Failed attempts and
// refreshes always produce a code different from the one they replace.
package captcha

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	CodeLength = 6
	Alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type State int

const (
	Unverified State = iota
	Verified
)

func (s State) String() string {
	if s == Verified {
		return "verified"
	}
	return "unverified"
}

type Challenge struct {
	rng      *rand.Rand
	renderer Renderer

	code     string
	input    string
	state    State
	image    image.Image
	art      []string
	failures int
}

type Option func(*Challenge)

// WithRand fixes the random source, mainly for tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Challenge) { c.rng = rng }
}

func WithRenderer(r Renderer) Option {
	return func(c *Challenge) { c.renderer = r }
}

// New returns a challenge with a freshly generated code.
func New(opts ...Option) *Challenge {
	c := &Challenge{}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		seed := uint64(time.Now().UnixNano())
		c.rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	if c.renderer == nil {
		c.renderer = DefaultRenderer()
	}
	c.Generate()
	return c
}

// Generate replaces the code, clears input and returns to unverified.
func (c *Challenge) Generate() {
	prev := c.code
	next := c.randomCode()
	for next == prev {
		next = c.randomCode()
	}
	c.code = next
	c.input = ""
	c.state = Unverified
	c.image = c.renderer.Render(c.code, c.rng)
	c.art = TextArt(c.code, c.rng)
}

func (c *Challenge) randomCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(Alphabet[c.rng.IntN(len(Alphabet))])
	}
	return b.String()
}

// SetInput records typed input. Input is frozen once verified.
func (c *Challenge) SetInput(v string) bool {
	if c.state == Verified {
		return false
	}
	c.input = v
	return true
}

func (c *Challenge) Input() string { return c.input }

// Verify compares input case-insensitively. A mismatch clears the input and
// regenerates the code.
func (c *Challenge) Verify(input string) bool {
	if c.state == Verified {
		return true
	}
	c.input = input
	if strings.EqualFold(strings.TrimSpace(input), c.code) {
		c.state = Verified
		return true
	}
	c.failures++
	c.Generate()
	return false
}

// Refresh regenerates the code. It is refused after verification.
func (c *Challenge) Refresh() bool {
	if c.state == Verified {
		return false
	}
	c.Generate()
	return true
}

func (c *Challenge) State() State { return c.state }

func (c *Challenge) Verified() bool { return c.state == Verified }

func (c *Challenge) Failures() int { return c.failures }

func (c *Challenge) Image() image.Image { return c.image }

// Art returns the terminal rendering of the current code.
func (c *Challenge) Art() []string {
	out := make([]string, len(c.art))
	copy(out, c.art)
	return out
}

func (c *Challenge) WritePNG(w io.Writer) error {
	if c.image == nil {
		return fmt.Errorf("captcha has no image")
	}
	if err := png.Encode(w, c.image); err != nil {
		return fmt.Errorf("encode captcha png: %w", err)
	}
	return nil
}
