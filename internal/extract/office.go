package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

const (
	nsDrawingML    = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsWordML       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsMarkupCompat = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	relImage       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

var (
	reSlideName    = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	reHeaderFooter = regexp.MustCompile(`^word/(header|footer)(\d*)\.xml$`)
)

// ooxmlPara is one paragraph with the image relationships embedded in it.
type ooxmlPara struct {
	Text   string
	Embeds []string
}

type ooxmlPackage struct {
	files map[string]*zip.File
}

func openPackage(data []byte, format constants.Format) (*ooxmlPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.CorruptInput(string(format), err)
	}
	pkg := &ooxmlPackage{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	return pkg, nil
}

func (p *ooxmlPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// relationships maps rId -> package path for image relationships of part.
func (p *ooxmlPackage) relationships(part string) map[string]string {
	dir, file := path.Split(part)
	raw, err := p.read(path.Join(dir, "_rels", file+".rels"))
	if err != nil {
		return nil
	}
	var rels struct {
		Items []struct {
			ID         string `xml:"Id,attr"`
			Type       string `xml:"Type,attr"`
			Target     string `xml:"Target,attr"`
			TargetMode string `xml:"TargetMode,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return nil
	}
	out := make(map[string]string)
	for _, r := range rels.Items {
		if r.Type != relImage || strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		out[r.ID] = path.Clean(path.Join(dir, r.Target))
	}
	return out
}

func (p *ooxmlPackage) image(name string) (image.Image, error) {
	raw, err := p.read(name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

// paragraphs walks an OOXML part and returns its paragraphs in order.
func paragraphs(raw []byte, textSpace string) ([]ooxmlPara, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var (
		out    []ooxmlPara
		cur    ooxmlPara
		buf    strings.Builder
		inText bool
		depth  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "Fallback" && t.Name.Space == nsMarkupCompat:
				// a VML copy of the Choice branch, e.g. a text box
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			case t.Name.Local == "p" && t.Name.Space == textSpace:
				if depth == 0 {
					cur = ooxmlPara{}
					buf.Reset()
				} else if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				depth++
			case t.Name.Local == "t" && t.Name.Space == textSpace:
				inText = true
			case t.Name.Local == "tab" && t.Name.Space == textSpace:
				buf.WriteByte('\t')
			case (t.Name.Local == "br" || t.Name.Local == "cr") && t.Name.Space == textSpace:
				buf.WriteByte('\n')
			case t.Name.Local == "blip":
				for _, a := range t.Attr {
					if a.Name.Local == "embed" && a.Value != "" {
						cur.Embeds = append(cur.Embeds, a.Value)
					}
				}
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "t" && t.Name.Space == textSpace:
				inText = false
			case t.Name.Local == "p" && t.Name.Space == textSpace:
				depth--
				if depth <= 0 {
					depth = 0
					cur.Text = strings.TrimSpace(buf.String())
					out = append(out, cur)
				} else {
					// text box paragraph inside a host paragraph
					buf.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return out, nil
}

func (b *builder) addEmbeds(ctx context.Context, pkg *ooxmlPackage, rels map[string]string, embeds []string, loc entity.Location) {
	for _, id := range embeds {
		target, ok := rels[id]
		if !ok {
			continue
		}
		img, err := pkg.image(target)
		if err != nil {
			b.logger.Debug("extract.image.skipped", "part", target, "error", err)
			b.warn(fmt.Sprintf("image %s skipped: %v", path.Base(target), err))
			continue
		}
		b.addImage(ctx, img, loc)
	}
}

// extractPPTX emits one block per slide, followed by OCR blocks for that slide's images.
func extractPPTX(ctx context.Context, b *builder, data []byte) error {
	pkg, err := openPackage(data, constants.PPTX)
	if err != nil {
		return err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for name := range pkg.files {
		if m := reSlideName.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: name})
		}
	}
	if len(slides) == 0 {
		return common.CorruptInput(string(constants.PPTX), errors.New("no slides found"))
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	for _, s := range slides {
		raw, err := pkg.read(s.name)
		if err != nil {
			return common.CorruptInput(string(constants.PPTX), err)
		}
		paras, err := paragraphs(raw, nsDrawingML)
		if err != nil {
			return common.CorruptInput(string(constants.PPTX), err)
		}
		loc := entity.Location{Page: s.n}
		lines := make([]string, 0, len(paras))
		for _, p := range paras {
			if p.Text != "" {
				lines = append(lines, p.Text)
			}
		}
		b.addText(strings.Join(lines, "\n"), loc)
		// p:pic shapes sit outside a:p
		b.addEmbeds(ctx, pkg, pkg.relationships(s.name), uniqueEmbeds(blipEmbeds(raw)), loc)
	}
	return nil
}

// extractDOCX emits one block per paragraph, with inline images following their paragraph.
// Header parts come first and footer parts last; text boxes are read as part of their host paragraph.
func extractDOCX(ctx context.Context, b *builder, data []byte) error {
	pkg, err := openPackage(data, constants.DOCX)
	if err != nil {
		return err
	}
	headers, footers := pkg.headerFooterParts()
	for _, part := range headers {
		b.docxMargin(ctx, pkg, part)
	}
	if err := b.docxPart(ctx, pkg, "word/document.xml", ""); err != nil {
		return common.CorruptInput(string(constants.DOCX), err)
	}
	for _, part := range footers {
		b.docxMargin(ctx, pkg, part)
	}
	return nil
}

// docxMargin reads a header or footer part. A broken one is skipped with a warning.
func (b *builder) docxMargin(ctx context.Context, pkg *ooxmlPackage, part string) {
	label := strings.TrimSuffix(path.Base(part), ".xml")
	if err := b.docxPart(ctx, pkg, part, label); err != nil {
		b.logger.Debug("extract.docx.part_skipped", "part", part, "error", err)
		b.warn(fmt.Sprintf("%s skipped: %v", label, err))
	}
}

func (b *builder) docxPart(ctx context.Context, pkg *ooxmlPackage, part, label string) error {
	raw, err := pkg.read(part)
	if err != nil {
		return err
	}
	paras, err := paragraphs(raw, nsWordML)
	if err != nil {
		return err
	}
	rels := pkg.relationships(part)
	for i, p := range paras {
		loc := entity.Location{Paragraph: i + 1, Part: label}
		b.addText(p.Text, loc)
		b.addEmbeds(ctx, pkg, rels, p.Embeds, loc)
	}
	return nil
}

// headerFooterParts lists word/header*.xml and word/footer*.xml in numeric order.
func (p *ooxmlPackage) headerFooterParts() (headers, footers []string) {
	num := make(map[string]int)
	for name := range p.files {
		m := reHeaderFooter.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num[name], _ = strconv.Atoi(m[2])
		if m[1] == "header" {
			headers = append(headers, name)
		} else {
			footers = append(footers, name)
		}
	}
	byNum := func(parts []string) {
		sort.Slice(parts, func(i, j int) bool { return num[parts[i]] < num[parts[j]] })
	}
	byNum(headers)
	byNum(footers)
	return headers, footers
}

func blipEmbeds(raw []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var out []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "blip" {
			for _, a := range se.Attr {
				if a.Name.Local == "embed" && a.Value != "" {
					out = append(out, a.Value)
				}
			}
		}
	}
}

func uniqueEmbeds(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
