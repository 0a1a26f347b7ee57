package tesseract

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t96.5\tDENY\n" +
	"5\t1\t1\t1\t1\t2\t70\t10\t40\t20\t91\ttcp\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t60\t20\t42\tAcme\n" +
	"5\t1\t1\t1\t2\t2\t80\t40\t10\t20\t-1\t \n"

func TestParseTSV(t *testing.T) {
	tokens := ParseTSV(sampleTSV)
	require.Len(t, tokens, 3)

	assert.Equal(t, "DENY", tokens[0].Text)
	assert.InDelta(t, 0.965, tokens[0].Confidence, 1e-5)
	assert.Equal(t, image.Rect(10, 10, 60, 30), tokens[0].Box)
	assert.Equal(t, tokens[0].Line, tokens[1].Line)
	assert.NotEqual(t, tokens[1].Line, tokens[2].Line)
	assert.InDelta(t, 0.42, tokens[2].Confidence, 1e-5)
}

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	return []byte(s.out), []byte("stderr"), s.err
}

func TestExecProviderRecognize(t *testing.T) {
	r := &stubRunner{out: sampleTSV}
	p := NewExecProvider(Config{PSM: 6, TessdataDir: "/td"}, r, nil)

	tokens, err := p.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), ocr.Options{Language: "deu"})
	require.NoError(t, err)
	assert.Len(t, tokens, 3)

	joined := strings.Join(r.args, " ")
	assert.Contains(t, joined, "tesseract ")
	assert.Contains(t, joined, "-l deu")
	assert.Contains(t, joined, "--psm 6")
	assert.Contains(t, joined, "--tessdata-dir /td")
	assert.True(t, strings.HasSuffix(joined, " tsv"))
}

func TestExecProviderError(t *testing.T) {
	p := NewExecProvider(Config{}, &stubRunner{err: errors.New("exit 1")}, nil)
	_, err := p.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), ocr.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract TSV")
}
