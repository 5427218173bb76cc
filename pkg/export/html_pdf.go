package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	baseFontSize = 10.0
	pxToMM       = 0.2646
	ptToLine     = 0.5
)

var headingSizes = map[atom.Atom]float64{
	atom.H1: 18,
	atom.H2: 14,
	atom.H3: 12,
	atom.H4: 11,
}

// GofpdfConverter lays out HTML with gofpdf in-process. It understands headings, paragraphs, lists,
// tables, links, bold and italic text and data URI images. CSS is ignored.
type GofpdfConverter struct{}

// NewGofpdfConverter constructs the in-process converter.
func NewGofpdfConverter() *GofpdfConverter {
	return &GofpdfConverter{}
}

func (c *GofpdfConverter) Name() string { return EngineGofpdf }

// Convert parses document and renders it onto Letter pages.
func (c *GofpdfConverter) Convert(ctx context.Context, document string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle(documentTitle(root), true)
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), size: baseFontSize}
	w.setFont()
	w.walk(root)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf       *gofpdf.Fpdf
	tr        func(string) string
	bold      int
	italic    int
	size      float64
	href      string
	listDepth int
	images    int
}

func (w *pdfWriter) setFont() {
	style := ""
	if w.bold > 0 {
		style += "B"
	}
	if w.italic > 0 {
		style += "I"
	}
	w.pdf.SetFont("Helvetica", style, w.size)
}

func (w *pdfWriter) lineHeight() float64 {
	return w.size * ptToLine
}

func (w *pdfWriter) atLineStart() bool {
	left, _, _, _ := w.pdf.GetMargins()
	return w.pdf.GetX() <= left+float64(w.listDepth)*5+0.5
}

// block ends the current line if anything was written on it.
func (w *pdfWriter) block() {
	if !w.atLineStart() {
		w.pdf.Ln(w.lineHeight())
	}
}

func (w *pdfWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		w.element(n)
		return
	}
	w.children(n)
}

func (w *pdfWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *pdfWriter) element(n *html.Node) {
	switch n.DataAtom {
	case atom.Head, atom.Style, atom.Script, atom.Title:
		return
	case atom.Br:
		w.pdf.Ln(w.lineHeight())
	case atom.Hr:
		w.block()
		left, _, right, _ := w.pdf.GetMargins()
		pageWidth, _ := w.pdf.GetPageSize()
		y := w.pdf.GetY() + 1
		w.pdf.Line(left, y, pageWidth-right, y)
		w.pdf.Ln(3)
	case atom.Img:
		w.image(n)
	case atom.H1, atom.H2, atom.H3, atom.H4:
		w.block()
		w.pdf.Ln(2)
		prev := w.size
		w.size = headingSizes[n.DataAtom]
		w.bold++
		w.setFont()
		w.children(n)
		w.block()
		w.bold--
		w.size = prev
		w.setFont()
	case atom.Strong, atom.B, atom.Th:
		w.bold++
		w.setFont()
		w.children(n)
		w.bold--
		w.setFont()
		if n.DataAtom == atom.Th {
			w.text(" ")
		}
	case atom.Em, atom.I:
		w.italic++
		w.setFont()
		w.children(n)
		w.italic--
		w.setFont()
	case atom.A:
		prev := w.href
		w.href = attr(n, "href")
		w.children(n)
		w.href = prev
	case atom.Ul, atom.Ol:
		w.block()
		w.listDepth++
		w.children(n)
		w.listDepth--
		w.block()
	case atom.Li:
		w.block()
		left, _, _, _ := w.pdf.GetMargins()
		w.pdf.SetX(left + float64(w.listDepth)*5)
		w.pdf.Write(w.lineHeight(), w.tr("• "))
		w.children(n)
		w.block()
	case atom.Td:
		w.children(n)
		w.text("  ")
	case atom.P, atom.Div, atom.Section, atom.Header, atom.Footer, atom.Table, atom.Tr:
		w.block()
		w.children(n)
		w.block()
		if n.DataAtom == atom.P || n.DataAtom == atom.Table {
			w.pdf.Ln(1.5)
		}
	default:
		w.children(n)
	}
}

func (w *pdfWriter) text(raw string) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		if raw != "" && !w.atLineStart() {
			w.pdf.Write(w.lineHeight(), " ")
		}
		return
	}
	if !w.atLineStart() && startsWithSpace(raw) {
		collapsed = " " + collapsed
	}
	if endsWithSpace(raw) {
		collapsed += " "
	}
	if w.href != "" {
		w.pdf.SetTextColor(20, 70, 160)
		w.pdf.WriteLinkString(w.lineHeight(), w.tr(collapsed), w.href)
		w.pdf.SetTextColor(0, 0, 0)
		return
	}
	w.pdf.Write(w.lineHeight(), w.tr(collapsed))
}

// image embeds data URI images. Anything else, or anything that does not decode, is skipped so a
// bad logo never fails the whole document.
func (w *pdfWriter) image(n *html.Node) {
	_, data, ok := parseDataURI(attr(n, "src"))
	if !ok {
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return
	}
	imageType := map[string]string{"png": "PNG", "jpeg": "JPG", "gif": "GIF"}[format]
	if imageType == "" {
		return
	}

	left, _, right, _ := w.pdf.GetMargins()
	pageWidth, _ := w.pdf.GetPageSize()
	maxWidth := pageWidth - left - right
	width := float64(cfg.Width) * pxToMM
	if px, err := strconv.Atoi(strings.TrimSuffix(attr(n, "width"), "px")); err == nil && px > 0 {
		width = float64(px) * pxToMM
	}
	if width > maxWidth {
		width = maxWidth
	}

	w.images++
	name := fmt.Sprintf("inline-%d", w.images)
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	w.block()
	w.pdf.ImageOptions(name, w.pdf.GetX(), w.pdf.GetY(), width, 0, true, opts, 0, "")
	w.pdf.Ln(2)
}

func parseDataURI(src string) (string, []byte, bool) {
	if !strings.HasPrefix(src, "data:") {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSuffix(meta, ";base64"), data, true
}

func documentTitle(root *html.Node) string {
	var title string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	return title
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r", rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r", rune(s[len(s)-1]))
}
