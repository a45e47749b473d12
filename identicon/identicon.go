// Package identicon derives a small symmetric avatar from an address string.
package identicon

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	GridSize = 5
	cellSize = 10
	padding  = 4
	// Columns generated before mirroring, center included.
	halfColumns = (GridSize + 1) / 2

	lcgMultiplier = 1103515245
	lcgIncrement  = 12345

	DefaultSize = 64
	MaxSize     = 1024
)

// Greens, pinks then greys.
var Palette = [...]string{
	"#b7ffe1", "#5be0b5", "#1ea87a",
	"#ff9db1", "#ff6b82", "#e0465f",
	"#9aa4ad", "#d9e1e5", "#4b5563",
}

// Icon is the abstract identicon: which cells are filled and with what colours.
type Icon struct {
	Cells   [GridSize][GridSize]bool
	Primary string
	Accent  string
}

// Seed is the hash every icon property is derived from.
func Seed(address string) uint64 {
	return xxhash.Sum64String(address)
}

// Generate is a pure function of address.
func Generate(address string) Icon {
	h := Seed(address)

	first := int(h&0xFF) % len(Palette)
	second := int((h>>8)&0xFF) % len(Palette)
	if second == first {
		second = (second + 1) % len(Palette)
	}
	icon := Icon{
		Primary: Palette[first],
		Accent:  Palette[second],
	}

	x := h
	for row := 0; row < GridSize; row++ {
		for col := 0; col < halfColumns; col++ {
			x = x*lcgMultiplier + lcgIncrement
			on := (x>>32)&1 == 1
			icon.Cells[row][col] = on
			icon.Cells[row][GridSize-1-col] = on
		}
	}
	return icon
}

// Fill is the colour of a filled cell.
func (icon Icon) Fill(row, col int) string {
	if (row+col)%2 == 0 {
		return icon.Primary
	}
	return icon.Accent
}

// Pattern packs the filled cells row-major into the low 25 bits.
func (icon Icon) Pattern() uint32 {
	var p uint32
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			if icon.Cells[row][col] {
				p |= 1 << (row*GridSize + col)
			}
		}
	}
	return p
}

// SVG renders the icon at size x size pixels.
func (icon Icon) SVG(size int) []byte {
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	w := GridSize*cellSize + padding*2
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-label="identicon">`, size, size, w, w)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="transparent"/>`, w, w)
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			if !icon.Cells[row][col] {
				continue
			}
			fmt.Fprintf(&buf, `<rect x="%d" y="%d" width="%d" height="%d" rx="2" ry="2" fill="%s" opacity="0.9"/>`,
				padding+col*cellSize, padding+row*cellSize, cellSize, cellSize, icon.Fill(row, col))
		}
	}
	r := GridSize*cellSize/2 - 4
	fmt.Fprintf(&buf, `<circle cx="%d" cy="%d" r="%d" fill="%s" opacity="0.2"/>`, w/2, w/2, r, icon.Primary)
	fmt.Fprintf(&buf, `<circle cx="%d" cy="%d" r="%d" fill="none" stroke="%s" stroke-width="1" opacity="0.5"/>`, w/2, w/2, r, icon.Primary)
	buf.WriteString("</svg>")
	return buf.Bytes()
}

// SVG is Generate followed by Icon.SVG.
func SVG(address string, size int) []byte {
	return Generate(address).SVG(size)
}
