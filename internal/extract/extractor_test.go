package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(_ context.Context, _ image.Image) (ocr.Recognition, error) {
	f.calls++
	if f.err != nil {
		return ocr.Recognition{}, f.err
	}
	return ocr.Recognition{Text: f.text, Confidence: 0.9}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func zipOf(t *testing.T, parts map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func texts(c entity.ExtractedContent) []string {
	out := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		out = append(out, b.Text)
	}
	return out
}

func run(t *testing.T, rec Recognizer, format constants.Format, data []byte) entity.ExtractedContent {
	t.Helper()
	out, err := NewExtractor(rec, nil, nil).Extract(context.Background(), entity.Document{ID: "d1", Format: format, Content: data})
	require.NoError(t, err)
	return out
}

func TestUnsupportedFormatFailsBeforeAnyWork(t *testing.T) {
	rec := &fakeOCR{text: "x"}
	_, err := NewExtractor(rec, nil, nil).Extract(context.Background(), entity.Document{ID: "d", Format: "exe", Content: pngBytes(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.Zero(t, rec.calls)
}

func TestResolveFormatSniffsWhenUndeclared(t *testing.T) {
	f, err := ResolveFormat("", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, constants.PNG, f)

	f, err = ResolveFormat(".JPG", nil)
	require.NoError(t, err)
	assert.Equal(t, constants.JPEG, f)
}

func TestExtractTXTParagraphs(t *testing.T) {
	out := run(t, nil, constants.TXT, []byte("Allow tcp 443\r\n\r\nContact John Smith at Acme\n"))
	assert.Equal(t, []string{"Allow tcp 443", "Contact John Smith at Acme"}, texts(out))
	assert.Equal(t, 1, out.Blocks[1].Index)
	assert.Equal(t, constants.ProvenanceNative, out.Blocks[0].Provenance)
	assert.Equal(t, -1, out.Blocks[0].ImageIndex)
}

func TestExtractTXTWindows1252Fallback(t *testing.T) {
	out := run(t, nil, constants.TXT, []byte{'c', 'a', 'f', 0xE9})
	assert.Equal(t, []string{"café"}, texts(out))
}

func TestExtractCSVRows(t *testing.T) {
	out := run(t, nil, constants.CSV, []byte("src,dst,port\n10.0.0.1, 10.0.0.2 ,443\n,,\n"))
	assert.Equal(t, []string{"src | dst | port", "10.0.0.1 | 10.0.0.2 | 443"}, texts(out))
	assert.Equal(t, 2, out.Blocks[1].Location.Row)
}

func TestExtractMarkdown(t *testing.T) {
	src := "# Firewall\n\nSome *rules* for <ops@acme.com>.\n\n```\nallow 443\n```\n\n- first item\n- second item\n"
	out := run(t, nil, constants.MD, []byte(src))
	assert.Equal(t, []string{"Firewall", "Some rules for ops@acme.com.", "allow 443", "first item", "second item"}, texts(out))
}

func TestExtractHTMLSkipsScriptsAndNestedBlocks(t *testing.T) {
	src := `<html><head><style>p{}</style><script>var x = "secret";</script></head>
<body><h1>Policy</h1><ul><li><p>Allow   ssh</p></li></ul><table><tr><td>Jane Doe</td></tr></table></body></html>`
	out := run(t, nil, constants.HTML, []byte(src))
	assert.Equal(t, []string{"Policy", "Allow ssh", "Jane Doe"}, texts(out))
}

func TestExtractHTMLContainers(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "div wrapped rules",
			src:  `<h1>Firewall review</h1><div>Rule 7: allow 10.0.0.5 to 10.0.0.9 port 443</div><div><span>Owner: Jane Doe</span></div>`,
			want: []string{"Firewall review", "Rule 7: allow 10.0.0.5 to 10.0.0.9 port 443", "Owner: Jane Doe"},
		},
		{
			name: "loose text around blocks",
			src:  `<body>Intro text <b>bold</b><p>Para</p>tail<section><article>Deep <a href="#">link</a></article></section></body>`,
			want: []string{"Intro text bold", "Para", "tail", "Deep link"},
		},
		{
			name: "title and page chrome",
			src:  `<html><head><title>Acme policy</title></head><body><main><header>Top</header>Body<br>text</main><footer>Bottom</footer></body></html>`,
			want: []string{"Acme policy", "Top", "Body text", "Bottom"},
		},
		{
			name: "comments dropped",
			src:  `<div><!-- owner: Jane --> visible </div>`,
			want: []string{"visible"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, nil, constants.HTML, []byte(tt.src))
			assert.Equal(t, tt.want, texts(out))
			for i, b := range out.Blocks {
				assert.Equal(t, i+1, b.Location.Paragraph)
			}
		})
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "source"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "destination"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "10.0.0.1"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	out := run(t, nil, constants.XLSX, buf.Bytes())
	assert.Equal(t, []string{"source | destination", "10.0.0.1"}, texts(out))
	assert.Equal(t, "Sheet1", out.Blocks[0].Location.Sheet)
	assert.Equal(t, 3, out.Blocks[1].Location.Row)
}

const docxXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
 xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
 xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<w:body>
<w:p><w:r><w:t>Prepared for </w:t></w:r><w:r><w:t>Acme Corp</w:t></w:r></w:p>
<w:p><w:r><w:drawing><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></w:drawing></w:r></w:p>
<w:p><w:r><w:t>Deny all inbound</w:t></w:r></w:p>
</w:body></w:document>`

const docxRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`

func TestExtractDOCXMergesOCRInDocumentOrder(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"word/document.xml":            []byte(docxXML),
		"word/_rels/document.xml.rels": []byte(docxRels),
		"word/media/image1.png":        pngBytes(t),
	})
	rec := &fakeOCR{text: "ACME LOGO"}
	out := run(t, rec, constants.DOCX, data)

	assert.Equal(t, []string{"Prepared for Acme Corp", "ACME LOGO", "Deny all inbound"}, texts(out))
	require.Len(t, out.Images, 1)
	assert.Equal(t, constants.ProvenanceOCR, out.Blocks[1].Provenance)
	assert.Equal(t, 0, out.Blocks[1].ImageIndex)
	assert.Equal(t, 1, rec.calls)
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

const docxTextBox = `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wordNS + ` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"
 xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape" xmlns:v="urn:schemas-microsoft-com:vml">
<w:body>
<w:p><w:r><w:t>Intro</w:t></w:r><w:r><mc:AlternateContent>
<mc:Choice Requires="wps"><w:drawing><wps:txbx><w:txbxContent><w:p><w:r><w:t>Box owner Jane Doe</w:t></w:r></w:p></w:txbxContent></wps:txbx></w:drawing></mc:Choice>
<mc:Fallback><w:pict><v:textbox><w:txbxContent><w:p><w:r><w:t>Box owner Jane Doe</w:t></w:r></w:p></w:txbxContent></v:textbox></w:pict></mc:Fallback>
</mc:AlternateContent></w:r></w:p>
<w:p><w:r><w:t>Deny all inbound</w:t></w:r></w:p>
</w:body></w:document>`

func margin(root, text string) []byte {
	return []byte(`<w:` + root + ` ` + wordNS + `><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:` + root + `>`)
}

func TestExtractDOCXHeadersFootersAndTextBoxes(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"word/document.xml": []byte(docxTextBox),
		"word/header2.xml":  margin("hdr", "Draft"),
		"word/header1.xml":  margin("hdr", "Acme Corp Confidential"),
		"word/header3.xml":  []byte(`<w:hdr ` + wordNS + `><w:p>`),
		"word/footer1.xml":  margin("ftr", "Page 1 owner Jane Doe"),
	})
	out := run(t, nil, constants.DOCX, data)

	assert.Equal(t, []string{
		"Acme Corp Confidential",
		"Draft",
		"Intro\nBox owner Jane Doe",
		"Deny all inbound",
		"Page 1 owner Jane Doe",
	}, texts(out))
	assert.Equal(t, "header1", out.Blocks[0].Location.Part)
	assert.Equal(t, "header2", out.Blocks[1].Location.Part)
	assert.Empty(t, out.Blocks[2].Location.Part)
	assert.Equal(t, 1, out.Blocks[2].Location.Paragraph)
	assert.Equal(t, 2, out.Blocks[3].Location.Paragraph)
	assert.Equal(t, "footer1", out.Blocks[4].Location.Part)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "header3 skipped")
}

func slideXML(text string) []byte {
	return []byte(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
}

func TestExtractPPTXOrdersSlidesNumerically(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"ppt/slides/slide10.xml": slideXML("ten"),
		"ppt/slides/slide2.xml":  slideXML("two"),
		"ppt/slides/slide1.xml":  slideXML("one"),
	})
	out := run(t, nil, constants.PPTX, data)
	assert.Equal(t, []string{"one", "two", "ten"}, texts(out))
	assert.Equal(t, 10, out.Blocks[2].Location.Page)
}

func TestImageOCRFailureDegradesToWarning(t *testing.T) {
	rec := &fakeOCR{err: common.RecognitionFailure("engine crashed", errors.New("boom"))}
	out := run(t, rec, constants.PNG, pngBytes(t))
	assert.Empty(t, out.Blocks)
	require.Len(t, out.Images, 1)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "RecognitionFailure")
}

func TestCorruptInputs(t *testing.T) {
	for _, f := range []constants.Format{constants.PNG, constants.PDF, constants.DOCX, constants.XLSX} {
		t.Run(string(f), func(t *testing.T) {
			_, err := NewExtractor(nil, nil, nil).Extract(context.Background(), entity.Document{ID: "d", Format: f, Content: []byte("definitely not a file")})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrCorruptInput)
		})
	}
}
