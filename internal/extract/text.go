package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

var (
	reParagraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	reSpaces         = regexp.MustCompile(`[ \t\f\v\r\n]+`)
)

// decodeText returns UTF-8 text. Non-UTF-8 input honours a UTF-16 BOM and otherwise falls back to Windows-1252.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		s := strings.TrimPrefix(string(data), "\uFEFF")
		return strings.ReplaceAll(s, "\r\n", "\n"), nil
	}
	dec := xunicode.BOMOverride(charmap.Windows1252.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(out), "\r\n", "\n"), nil
}

func extractTXT(_ context.Context, b *builder, data []byte) error {
	s, err := decodeText(data)
	if err != nil {
		return common.CorruptInput(string(constants.TXT), err)
	}
	for i, para := range reParagraphBreak.Split(s, -1) {
		b.addText(strings.TrimSpace(para), entity.Location{Paragraph: i + 1})
	}
	return nil
}

func extractCSV(_ context.Context, b *builder, data []byte) error {
	s, err := decodeText(data)
	if err != nil {
		return common.CorruptInput(string(constants.CSV), err)
	}
	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	row := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return common.CorruptInput(string(constants.CSV), err)
		}
		row++
		b.addText(joinCells(rec), entity.Location{Row: row})
	}
	return nil
}

func joinCells(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " | ")
}

// extractMarkdown emits one block per paragraph, heading, list text block or code block.
func extractMarkdown(_ context.Context, b *builder, data []byte) error {
	src := []byte(strings.TrimPrefix(string(data), "\uFEFF"))
	if !utf8.Valid(src) {
		return common.CorruptInput(string(constants.MD), errors.New("markdown is not valid UTF-8"))
	}
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	n := 0
	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.Kind() {
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			n++
			b.addText(strings.TrimSpace(inlineText(node, src)), entity.Location{Paragraph: n})
			return ast.WalkSkipChildren, nil
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			n++
			b.addText(strings.TrimRight(buf.String(), "\n"), entity.Location{Paragraph: n})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return common.CorruptInput(string(constants.MD), err)
	}
	return nil
}

func inlineText(node ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.AutoLink:
			buf.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// htmlLeaves are emitted whole, including any markup nested inside them.
var htmlLeaves = map[string]bool{
	"title": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "li": true, "td": true, "th": true, "pre": true, "blockquote": true,
	"dt": true, "dd": true, "caption": true, "figcaption": true, "summary": true, "address": true,
}

// htmlContainers are walked; their direct text and inline children form blocks of their own.
var htmlContainers = map[string]bool{
	"html": true, "body": true, "div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "nav": true, "form": true, "fieldset": true,
	"ul": true, "ol": true, "dl": true, "table": true, "thead": true, "tbody": true, "tfoot": true,
	"tr": true, "figure": true, "details": true, "center": true,
}

// extractHTML emits one block per leaf block element, plus one per run of loose text or inline
// markup inside a container ("<div><span>Owner: Jane</span></div>").
func extractHTML(_ context.Context, b *builder, data []byte) error {
	s, err := decodeText(data)
	if err != nil {
		return common.CorruptInput(string(constants.HTML), err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return common.CorruptInput(string(constants.HTML), err)
	}
	doc.Find("script, style, noscript, template").Remove()

	w := &htmlWalker{b: b}
	w.emit(doc.Find("head title").First().Text())
	w.walk(doc.Find("body").First())
	w.flush()
	return nil
}

type htmlWalker struct {
	b       *builder
	n       int
	pending strings.Builder
}

func (w *htmlWalker) walk(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			w.pending.WriteString(c.Text())
		case strings.HasPrefix(name, "#"): // comment
		case htmlLeaves[name]:
			w.flush()
			w.emit(c.Text())
		case htmlContainers[name]:
			w.flush()
			w.walk(c)
			w.flush()
		case name == "br":
			w.pending.WriteByte(' ')
		default:
			w.pending.WriteString(c.Text())
		}
	})
}

func (w *htmlWalker) flush() {
	w.emit(w.pending.String())
	w.pending.Reset()
}

func (w *htmlWalker) emit(text string) {
	text = collapse(text)
	if text == "" {
		return
	}
	w.n++
	w.b.addText(text, entity.Location{Paragraph: w.n})
}

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
