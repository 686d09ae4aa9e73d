// Package qr renders the branded SVG QR artifact for a short-link alias.
//
// The output is a pure function of the alias and the configured base domain:
// the same alias always yields byte-identical markup. The SVG is assembled as
// a small element tree and serialized once, instead of patching an encoder's
// serialized output with string surgery.
package qr

import (
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrQREncoding = errors.New("QR encoding failed")

//go:embed assets/logo.png
var logoPNG []byte

// logoDataURI is computed once at process start so rendering never touches
// the file system.
var logoDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(logoPNG)

const (
	// qrVersion 5 with level-H correction holds 46 bytes, enough for the
	// canonical short URL with the longest permitted alias. Forcing the
	// version keeps the module grid, and therefore the markup, stable.
	qrVersion = 5
	quietZone = 2

	// The viewBox height is stretched by renderHeight/codeWidth to reserve a
	// caption band below the code; the displayed size is forced to
	// renderHeight in both axes.
	codeWidth    = 375.0
	renderHeight = 400.0

	logoRatio       = 0.27
	captionFontSize = 3.0
)

// Renderer produces SVG markup encoding https://<baseDomain>/s/<alias>.
type Renderer struct {
	baseDomain string
}

func NewRenderer(baseDomain string) *Renderer {
	return &Renderer{baseDomain: baseDomain}
}

// Render encodes the alias's canonical short URL as a branded SVG QR code.
func (r *Renderer) Render(alias string) (string, error) {
	shortURL := "https://" + r.baseDomain + "/s/" + alias

	code, err := qrcode.NewWithForcedVersion(shortURL, qrVersion, qrcode.Highest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQREncoding, err)
	}
	code.DisableBorder = true
	modules := code.Bitmap()

	// Coordinate box: one unit per module plus the quiet zone on each side.
	box := float64(len(modules) + 2*quietZone)
	extendedHeight := box * (renderHeight / codeWidth)
	extraSpace := extendedHeight - box

	logoSize := box * logoRatio
	logoX := (box - logoSize) / 2
	logoY := (box - logoSize) / 2

	root := newElement("svg",
		attr{"xmlns", "http://www.w3.org/2000/svg"},
		attr{"viewBox", fmt.Sprintf("0 0 %s %s", num(box), num(extendedHeight))},
		attr{"width", num(renderHeight)},
		attr{"height", num(renderHeight)},
		attr{"preserveAspectRatio", "xMidYMid meet"},
		attr{"shape-rendering", "crispEdges"},
	)

	// White background first, so the code scans regardless of where the
	// markup is embedded.
	root.append(newElement("rect",
		attr{"width", "100%"},
		attr{"height", "100%"},
		attr{"fill", "#ffffff"},
	))

	root.append(newElement("path",
		attr{"d", modulePath(modules)},
		attr{"fill", "#000000"},
	))

	// Logo overlay: a white backing rect padded by one unit keeps the scan
	// margin around the logo intact.
	root.append(newElement("rect",
		attr{"x", num(logoX - 1)},
		attr{"y", num(logoY - 1)},
		attr{"width", num(logoSize + 2)},
		attr{"height", num(logoSize + 2)},
		attr{"fill", "#ffffff"},
	))
	root.append(newElement("image",
		attr{"href", logoDataURI},
		attr{"x", num(logoX)},
		attr{"y", num(logoY)},
		attr{"width", num(logoSize)},
		attr{"height", num(logoSize)},
		attr{"preserveAspectRatio", "xMidYMid meet"},
	))

	caption := newElement("text",
		attr{"x", "50%"},
		attr{"y", num(box + extraSpace*0.5)},
		attr{"text-anchor", "middle"},
		attr{"fill", "#000000"},
		attr{"font-size", num(captionFontSize)},
		attr{"font-family", "Lato, Arial, sans-serif"},
		attr{"font-weight", "600"},
	)
	caption.text = r.baseDomain + "/s/" + alias
	root.append(caption)

	var b strings.Builder
	root.writeTo(&b)
	return b.String(), nil
}

// modulePath emits one unit square per dark module as a single path, offset
// by the quiet zone.
func modulePath(modules [][]bool) string {
	var b strings.Builder
	for y, row := range modules {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x+quietZone, y+quietZone)
			}
		}
	}
	return b.String()
}

// num formats a coordinate with the shortest exact decimal representation,
// keeping the markup stable across renders.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type attr struct {
	key   string
	value string
}

// element is a minimal SVG node: ordered attributes, optional text content,
// child elements.
type element struct {
	name     string
	attrs    []attr
	text     string
	children []*element
}

func newElement(name string, attrs ...attr) *element {
	return &element{name: name, attrs: attrs}
}

func (e *element) append(child *element) {
	e.children = append(e.children, child)
}

func (e *element) writeTo(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.name)
	for _, a := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(a.key)
		b.WriteString(`="`)
		b.WriteString(escapeXML(a.value))
		b.WriteByte('"')
	}
	if len(e.children) == 0 && e.text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if e.text != "" {
		b.WriteString(escapeXML(e.text))
	}
	for _, child := range e.children {
		child.writeTo(b)
	}
	b.WriteString("</")
	b.WriteString(e.name)
	b.WriteByte('>')
}

func escapeXML(s string) string {
	if !strings.ContainsAny(s, `&<>"`) {
		return s
	}
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
