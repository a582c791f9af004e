package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"medpassport/internal/errors"
	"medpassport/internal/segment"
	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = errors.NewLoggerTo(io.Discard, slog.LevelDebug)

type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	failOn    map[int]error
	calls     []string
	onCall    func(n int)
}

func (f *fakeProvider) ClassifyChunk(ctx context.Context, chunk string) (string, *TokenUsage, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, chunk)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(n)
	}
	if err := f.failOn[n]; err != nil {
		return "", nil, err
	}
	resp := `{}`
	if n < len(f.responses) {
		resp = f.responses[n]
	}
	return resp, &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake", Available: true}
}

func (f *fakeProvider) GetCircuitBreakerStats() map[string]any { return map[string]any{"enabled": false} }

func (f *fakeProvider) Close() error { return nil }

// threeChunkCV produces three windows at a chunk size of 60.
func threeChunkCV() string {
	lines := []string{
		"Foundation Year 1, St Mary's Hospital, London",
		"Lumbar puncture performed under supervision x4",
		"Audit: sepsis six compliance on acute wards",
	}
	return strings.Join(lines, "\n\n")
}

func newTestParser(p AIProvider, delay time.Duration) *ChunkParser {
	return NewChunkParser(p, segment.New(40), 60, delay, quietLogger)
}

func TestChunkParserMergesChunksInOrder(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"```json\n{\"rotations\":[{\"hospital\":\"St Mary's Hospital\",\"specialty\":\"Medicine\"}]}\n```",
		`{"procedures":[{"procedure":"Lumbar puncture","level":"Supervised","count":4}]}`,
		`Here it is: {"projects":[{"type":"Audit","title":"Sepsis six compliance"}]}`,
	}}

	result, err := newTestParser(provider, 0).Parse(context.Background(), threeChunkCV())
	require.NoError(t, err)

	assert.Len(t, provider.calls, 3)
	assert.Equal(t, ModeAI, result.Mode)
	assert.Equal(t, 3, result.Chunks)
	assert.Zero(t, result.Dropped)
	require.Len(t, result.Rotations, 1)
	assert.Equal(t, 1, result.TotalRotations)
	assert.Equal(t, "St Mary's Hospital", result.Rotations[0].Hospital)
	require.Len(t, result.Procedures, 1)
	require.Len(t, result.Projects, 1)
	assert.NotEmpty(t, result.Sections[types.CategoryRotation], "keyword sections are filled alongside AI results")
}

func TestChunkParserDropsFailedChunks(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{
			`{"rotations":[{"hospital":"St Mary's Hospital"}]}`,
			`not json at all`,
			`{"registrations":["GMC 1234567"]}`,
		},
	}
	provider.failOn = map[int]error{0: fmt.Errorf("quota exceeded")}

	result, err := newTestParser(provider, 0).Parse(context.Background(), threeChunkCV())
	require.NoError(t, err)

	assert.Len(t, provider.calls, 3, "a failed chunk does not stop the loop")
	assert.Equal(t, 2, result.Dropped)
	assert.Empty(t, result.Rotations)
	assert.Equal(t, []string{"GMC 1234567"}, result.Registrations)
}

func TestChunkParserWaitsBetweenCalls(t *testing.T) {
	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	provider := &fakeProvider{onCall: func(int) {
		mu.Lock()
		stamp = append(stamp, time.Now())
		mu.Unlock()
	}}

	delay := 30 * time.Millisecond
	_, err := newTestParser(provider, delay).Parse(context.Background(), threeChunkCV())
	require.NoError(t, err)

	require.Len(t, stamp, 3)
	for i := 1; i < len(stamp); i++ {
		assert.GreaterOrEqual(t, stamp[i].Sub(stamp[i-1]), delay)
	}
}

func TestChunkParserStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &fakeProvider{responses: []string{`{"rotations":[{"hospital":"St Mary's Hospital"}]}`}}
	provider.onCall = func(n int) {
		if n == 0 {
			cancel()
		}
	}

	result, err := newTestParser(provider, time.Hour).Parse(ctx, threeChunkCV())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, provider.calls, 1)
	require.Len(t, result.Rotations, 1, "partial results survive cancellation")
	assert.Equal(t, 2, result.Dropped)
}

func TestChunkParserUsesTracker(t *testing.T) {
	provider := &fakeProvider{}
	var ops []string
	var tokens int64
	parser := newTestParser(provider, 0).WithTracker(func(ctx context.Context, op string, fn func(context.Context) (*TokenUsage, error)) error {
		ops = append(ops, op)
		usage, err := fn(ctx)
		if usage != nil {
			tokens += usage.TotalTokens
		}
		return err
	})

	_, err := parser.Parse(context.Background(), threeChunkCV())
	require.NoError(t, err)
	assert.Equal(t, []string{"classify_chunk", "classify_chunk", "classify_chunk"}, ops)
	assert.Equal(t, int64(45), tokens)
}

func TestChunkParserEmptyText(t *testing.T) {
	provider := &fakeProvider{}
	result, err := newTestParser(provider, 0).Parse(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Empty(t, provider.calls)
	assert.Zero(t, result.Chunks)
	assert.NotNil(t, result.Rotations)
}
