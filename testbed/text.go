package testbed

import (
	"github.com/fzipp/bmfont"
	"golang.org/x/image/font/basicfont"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Quad is one rectangle of laid out text in virtual screen units.
type Quad struct {
	X, Y, W, H     float32
	S1, T1, S2, T2 float32
	// nil draws untextured
	Material metadata.Material
}

type bmGlyph struct {
	x, y, w, h       int
	xoff, yoff, xadv int
}

type glyphRun struct {
	x, y, w int
}

/**
 * @brief Lays out strings as GUI quads. A .fnt bitmap font gives textured
 * glyph boxes; without one, the built-in 7x13 face is rasterized into
 * solid runs so text shows up without any texture.
 */
type TextRenderer struct {
	chars      map[rune]bmGlyph
	kerning    map[[2]rune]int
	atlasW     float32
	atlasH     float32
	lineHeight int
	material   *metadata.ConstMaterial

	face *basicfont.Face
	runs map[rune][]glyphRun
}

func NewTextRenderer(path string) *TextRenderer {
	tr := &TextRenderer{
		face: basicfont.Face7x13,
		runs: make(map[rune][]glyphRun),
	}
	tr.lineHeight = tr.face.Height
	if path == "" {
		return tr
	}

	font, err := bmfont.Load(path)
	if err != nil {
		core.LogWarn("bitmap font '%s' unavailable, using the %dx%d fallback: %s", path, tr.face.Width, tr.face.Height, err)
		return tr
	}
	desc := font.Descriptor
	tr.chars = make(map[rune]bmGlyph, len(desc.Chars))
	for _, g := range desc.Chars {
		tr.chars[rune(g.ID)] = bmGlyph{
			x: int(g.X), y: int(g.Y), w: int(g.Width), h: int(g.Height),
			xoff: int(g.XOffset), yoff: int(g.YOffset), xadv: int(g.XAdvance),
		}
	}
	tr.kerning = make(map[[2]rune]int, len(desc.Kerning))
	for pair, k := range desc.Kerning {
		tr.kerning[[2]rune{rune(pair.First), rune(pair.Second)}] = int(k.Amount)
	}
	tr.atlasW = float32(desc.Common.ScaleW)
	tr.atlasH = float32(desc.Common.ScaleH)
	tr.lineHeight = int(desc.Common.LineHeight)
	tr.material = &metadata.ConstMaterial{
		MaterialName: "font/" + desc.Info.Face,
		SortKey:      metadata.SS_GUI,
		Prog:         metadata.BUILTIN_TEXTURED,
		Registers:    []float32{1, 1, 1, 1},
	}
	core.LogInfo("Loaded bitmap font '%s' (%d glyphs, %d px).", desc.Info.Face, len(tr.chars), int(desc.Info.Size))
	return tr
}

// Bitmap reports whether a .fnt font was loaded.
func (tr *TextRenderer) Bitmap() bool { return tr.chars != nil }

func (tr *TextRenderer) LineHeight(scale float32) float32 {
	return float32(tr.lineHeight) * scale
}

// Layout places s with its top-left corner at the origin.
func (tr *TextRenderer) Layout(s string, scale float32) []Quad {
	if tr.Bitmap() {
		return tr.layoutBitmap(s, scale)
	}
	return tr.layoutFallback(s, scale)
}

func (tr *TextRenderer) layoutBitmap(s string, scale float32) []Quad {
	var quads []Quad
	var cx, cy float32
	prev := rune(-1)
	for _, r := range s {
		if r == '\n' {
			cx = 0
			cy += tr.LineHeight(scale)
			prev = -1
			continue
		}
		g, ok := tr.chars[r]
		if !ok {
			g, ok = tr.chars['?']
			if !ok {
				continue
			}
		}
		cx += float32(tr.kerning[[2]rune{prev, r}]) * scale
		if g.w > 0 && g.h > 0 {
			quads = append(quads, Quad{
				X:        cx + float32(g.xoff)*scale,
				Y:        cy + float32(g.yoff)*scale,
				W:        float32(g.w) * scale,
				H:        float32(g.h) * scale,
				S1:       float32(g.x) / tr.atlasW,
				T1:       float32(g.y) / tr.atlasH,
				S2:       float32(g.x+g.w) / tr.atlasW,
				T2:       float32(g.y+g.h) / tr.atlasH,
				Material: tr.material,
			})
		}
		cx += float32(g.xadv) * scale
		prev = r
	}
	return quads
}

func (tr *TextRenderer) layoutFallback(s string, scale float32) []Quad {
	var quads []Quad
	var cx, cy float32
	for _, r := range s {
		if r == '\n' {
			cx = 0
			cy += tr.LineHeight(scale)
			continue
		}
		for _, run := range tr.glyphRuns(r) {
			quads = append(quads, Quad{
				X:  cx + float32(run.x)*scale,
				Y:  cy + float32(run.y)*scale,
				W:  float32(run.w) * scale,
				H:  scale,
				S2: 1,
				T2: 1,
			})
		}
		cx += float32(tr.face.Advance) * scale
	}
	return quads
}

// glyphRuns splits the glyph mask into horizontal runs of covered pixels.
func (tr *TextRenderer) glyphRuns(r rune) []glyphRun {
	if runs, ok := tr.runs[r]; ok {
		return runs
	}
	index := -1
	for _, rr := range tr.face.Ranges {
		if r >= rr.Low && r < rr.High {
			index = int(r-rr.Low) + rr.Offset
			break
		}
	}
	var runs []glyphRun
	if index >= 0 {
		top := index * tr.face.Height
		for y := 0; y < tr.face.Height; y++ {
			start := -1
			for x := 0; x <= tr.face.Width; x++ {
				covered := false
				if x < tr.face.Width {
					_, _, _, a := tr.face.Mask.At(x, top+y).RGBA()
					covered = a >= 0x8000
				}
				switch {
				case covered && start < 0:
					start = x
				case !covered && start >= 0:
					runs = append(runs, glyphRun{x: start, y: y, w: x - start})
					start = -1
				}
			}
		}
	}
	tr.runs[r] = runs
	return runs
}

// DrawText draws s at x, y in the current color and returns the number of quads.
func (tr *TextRenderer) DrawText(rs *renderer.RenderSystem, x, y, scale float32, s string) int {
	quads := tr.Layout(s, scale)
	for _, q := range quads {
		rs.DrawStretchPic(x+q.X, y+q.Y, q.W, q.H, q.S1, q.T1, q.S2, q.T2, q.Material)
	}
	return len(quads)
}
