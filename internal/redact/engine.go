package redact

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/metrics"
)

// Options tune the engine.
type Options struct {
	DetectorTimeout time.Duration // per block
	MinConfidence   float32       // detector spans below this are ignored
	LogoThreshold   float32
}

// Engine is Stage 2: extracted content -> anonymized document.
type Engine struct {
	detector Detector
	opts     Options
	logger   *slog.Logger
}

// NewEngine builds an engine. A nil detector means only client name and logo matching run.
func NewEngine(detector Detector, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LogoThreshold <= 0 {
		opts.LogoThreshold = 0.8
	}
	return &Engine{detector: detector, opts: opts, logger: logger}
}

// Redact masks PII in every block and the client logo in every image region.
// It never fails the document: a block whose detector errors is kept with RedactionIncomplete set.
func (e *Engine) Redact(ctx context.Context, content entity.ExtractedContent, clientName string, logo image.Image) entity.AnonymizedDocument {
	start := time.Now()
	out := entity.AnonymizedDocument{
		DocumentID: content.DocumentID,
		Format:     content.Format,
		Blocks:     make([]entity.AnonymizedBlock, 0, len(content.Blocks)),
		Warnings:   append([]string(nil), content.Warnings...),
	}

	client := NewClientMatcher(clientName)
	logoSpans := e.maskImages(content, NewLogoMatcher(logo, e.opts.LogoThreshold), &out)

	for _, block := range content.Blocks {
		resolved, err := e.redactText(ctx, block.Text, client, logoSpans[block.Index])
		incomplete := err != nil
		if incomplete {
			e.logger.Warn("redact.block.incomplete", "document_id", content.DocumentID, "block", block.Index, "error", err)
			out.Warnings = append(out.Warnings, common.Warning(common.NewAppError(
				common.CodeRedactionIncomplete,
				fmt.Sprintf("block %d emitted without general PII detection: %v", block.Index, err),
				common.ErrRedactionIncomplete,
			)))
			metrics.RedactionIncompleteBlocks.Inc()
		}
		for i := range resolved {
			resolved[i].Block = block.Index
			metrics.RedactionSpans.WithLabelValues(string(resolved[i].Category)).Inc()
		}
		out.Spans = append(out.Spans, resolved...)
		out.Blocks = append(out.Blocks, entity.AnonymizedBlock{
			Index:               block.Index,
			Text:                Apply(block.Text, resolved),
			Provenance:          block.Provenance,
			Location:            block.Location,
			LowConfidence:       block.LowConfidence,
			RedactionIncomplete: incomplete,
		})
	}

	sort.SliceStable(out.Spans, func(i, j int) bool {
		if out.Spans[i].Block != out.Spans[j].Block {
			return out.Spans[i].Block < out.Spans[j].Block
		}
		return out.Spans[i].Start < out.Spans[j].Start
	})
	out.Reconciled = Reconciled(out.Spans)

	e.logger.Info("redact.ok",
		"document_id", content.DocumentID,
		"blocks", len(out.Blocks),
		"spans", len(out.Spans),
		"incomplete_blocks", out.IncompleteBlocks(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// maxRounds bounds how often a block is re-scanned after substitution.
const maxRounds = 4

// redactText returns reconciled spans over text. The substituted text is scanned again, with
// placeholders blanked out, until a scan adds nothing; running the engine over its own output
// therefore finds no new spans. A detector error on the first scan is returned and detection
// stays off for the block; client name and logo spans are still applied.
func (e *Engine) redactText(ctx context.Context, text string, client *ClientMatcher, fixed []entity.RedactionSpan) ([]entity.RedactionSpan, error) {
	spans, detectErr := e.detect(ctx, maskPlaceholders(text))
	if detectErr != nil {
		spans = nil
	}
	spans = append(spans, client.Find(text)...)
	spans = append(spans, fixed...)
	resolved := Reconcile(text, spans)

	for round := 1; round < maxRounds && len(resolved) > 0; round++ {
		current := Apply(text, resolved)
		var more []entity.RedactionSpan
		if detectErr == nil {
			found, err := e.detect(ctx, maskPlaceholders(current))
			if err != nil {
				e.logger.Debug("redact.rescan.failed", "round", round, "error", err)
				break
			}
			more = found
		}
		more = Reconcile(current, append(more, client.Find(current)...))
		if len(more) == 0 {
			break
		}
		applied := resolved
		resolved = make([]entity.RedactionSpan, 0, len(applied)+len(more))
		resolved = append(resolved, applied...)
		for _, s := range more {
			resolved = append(resolved, toSource(s, applied))
		}
		sort.Slice(resolved, func(i, j int) bool { return resolved[i].Start < resolved[j].Start })
	}
	return resolved, detectErr
}

// maskPlaceholders blanks placeholder tokens with spaces of the same length so detectors do not
// read them as context. Offsets are unchanged.
func maskPlaceholders(text string) string {
	marks := rePlaceholder.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return text
	}
	b := []byte(text)
	for _, m := range marks {
		for i := m[0]; i < m[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// toSource maps a span found in Apply(text, applied) back onto text. s must not touch a placeholder.
func toSource(s entity.RedactionSpan, applied []entity.RedactionSpan) entity.RedactionSpan {
	shift := 0
	for _, a := range applied {
		width := len(constants.Placeholder(a.Category))
		if a.Start+shift+width > s.Start {
			break
		}
		shift += width - a.Len()
	}
	s.Start -= shift
	s.End -= shift
	return s
}

func (e *Engine) detect(ctx context.Context, text string) ([]entity.RedactionSpan, error) {
	if e.detector == nil {
		return nil, nil
	}
	dctx, cancel := common.WithTimeout(ctx, e.opts.DetectorTimeout)
	defer cancel()
	spans, err := e.detector.Detect(dctx, text)
	if err != nil {
		return nil, err
	}
	if e.opts.MinConfidence <= 0 {
		return spans, nil
	}
	kept := spans[:0]
	for _, s := range spans {
		if s.Confidence >= e.opts.MinConfidence {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// maskImages blacks out logo matches and returns CLIENT_LOGO spans for OCR tokens inside them, keyed by block index.
func (e *Engine) maskImages(content entity.ExtractedContent, lm *LogoMatcher, out *entity.AnonymizedDocument) map[int][]entity.RedactionSpan {
	spans := make(map[int][]entity.RedactionSpan)
	for _, region := range content.Images {
		masked := entity.MaskedImage{Index: region.Index, Location: region.Location, Image: region.Image}
		matches := lm.Match(region.Image)
		if len(matches) > 0 {
			boxes := make([]image.Rectangle, len(matches))
			for i, m := range matches {
				boxes[i] = m.Box
			}
			masked.Image = Mask(region.Image, boxes)
			masked.LogoMatches = matches
			e.logger.Debug("redact.logo.matched", "document_id", content.DocumentID, "image", region.Index, "matches", len(matches))
		}
		out.Images = append(out.Images, masked)
		if len(matches) == 0 {
			continue
		}
		for _, block := range content.Blocks {
			if block.Provenance != constants.ProvenanceOCR || block.ImageIndex != region.Index {
				continue
			}
			spans[block.Index] = append(spans[block.Index], tokensInside(block, matches)...)
		}
	}
	return spans
}

// tokensInside tags tokens whose box is mostly covered by a logo match.
func tokensInside(block entity.TextBlock, matches []entity.LogoMatch) []entity.RedactionSpan {
	var out []entity.RedactionSpan
	for _, tok := range block.Tokens {
		area := tok.Box.Dx() * tok.Box.Dy()
		if area == 0 {
			continue
		}
		for _, m := range matches {
			in := tok.Box.Intersect(m.Box)
			if in.Empty() || in.Dx()*in.Dy()*2 < area {
				continue
			}
			out = append(out, entity.RedactionSpan{
				Start:      tok.Start,
				End:        tok.End,
				Category:   constants.ClientLogo,
				Confidence: m.Similarity,
				Source:     "logo",
			})
			break
		}
	}
	return out
}
