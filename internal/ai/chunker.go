package ai

import (
	"context"
	"errors"
	"time"

	appErrors "medpassport/internal/errors"
	"medpassport/internal/segment"
	"medpassport/internal/types"
)

// ModeAI is reported in ParseResult.Mode by ChunkParser.
const ModeAI = "ai"

// ChunkParser sends fixed-size windows of CV text to the provider one at a
// time, waiting delay between calls. A chunk whose call or decode fails is
// dropped and counted; the loop carries on.
type ChunkParser struct {
	provider  AIProvider
	segmenter *segment.Segmenter
	chunkSize int
	delay     time.Duration
	logger    *appErrors.Logger
	track     CallTracker
}

// Ensure ChunkParser implements segment.Parser
var _ segment.Parser = (*ChunkParser)(nil)

// NewChunkParser builds an AI parser. The segmenter fills the raw sections.
func NewChunkParser(provider AIProvider, segmenter *segment.Segmenter, chunkSize int, delay time.Duration, logger *appErrors.Logger) *ChunkParser {
	return &ChunkParser{
		provider:  provider,
		segmenter: segmenter,
		chunkSize: chunkSize,
		delay:     delay,
		logger:    logger,
	}
}

// WithTracker wraps every provider call with t.
func (p *ChunkParser) WithTracker(t CallTracker) *ChunkParser {
	p.track = t
	return p
}

// Mode reports ModeAI.
func (p *ChunkParser) Mode() string { return ModeAI }

// Parse classifies text chunk by chunk. Cancellation stops the loop and
// returns what was collected so far together with the context error.
func (p *ChunkParser) Parse(ctx context.Context, text string) (types.ParseResult, error) {
	chunks := segment.Windows(text, p.chunkSize)

	result := types.ParseResult{
		Mode:          p.Mode(),
		Characters:    len([]rune(text)),
		Rotations:     []types.RotationCandidate{},
		Procedures:    []types.ProcedureCandidate{},
		Projects:      []types.ProjectCandidate{},
		Registrations: []string{},
		Sections:      p.segmenter.Segment(text),
		Chunks:        len(chunks),
	}

	var stopErr error
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			stopErr = err
			result.Dropped += len(chunks) - i
			break
		}

		if i > 0 && p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				stopErr = ctx.Err()
			}
			if stopErr != nil {
				result.Dropped += len(chunks) - i
				break
			}
		}

		classified, err := p.classify(ctx, chunk)
		if err != nil {
			result.Dropped++
			p.logger.Warn("Dropping CV chunk",
				"chunk", i+1,
				"chunks", len(chunks),
				"chunk_length", len(chunk),
				"error", err.Error())
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				stopErr = err
				result.Dropped += len(chunks) - i - 1
				break
			}
			continue
		}

		result.Rotations = append(result.Rotations, classified.Rotations...)
		result.Procedures = append(result.Procedures, classified.Procedures...)
		result.Projects = append(result.Projects, classified.Projects...)
		result.Registrations = append(result.Registrations, classified.Registrations...)
	}

	result.TotalRotations = len(result.Rotations)

	p.logger.Debug("AI parse finished",
		"chunks", result.Chunks,
		"dropped", result.Dropped,
		"rotations", len(result.Rotations),
		"procedures", len(result.Procedures),
		"projects", len(result.Projects))

	return result, stopErr
}

func (p *ChunkParser) classify(ctx context.Context, chunk string) (types.ChunkClassification, error) {
	var raw string
	call := func(ctx context.Context) (*TokenUsage, error) {
		text, usage, err := p.provider.ClassifyChunk(ctx, chunk)
		raw = text
		return usage, err
	}

	var err error
	if p.track != nil {
		err = p.track(ctx, operationClassify, call)
	} else {
		_, err = call(ctx)
	}
	if err != nil {
		return types.ChunkClassification{}, err
	}
	return DecodeChunk(raw)
}
