package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

type mockBedrockClient struct {
	response string
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: m.response},
				},
			},
		},
	}, nil
}

type countingGateway struct {
	calls atomic.Int32
	out   string
	err   error
}

func (c *countingGateway) Generate(context.Context, string) (string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveLLMCall(_ string, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestBedrockGatewayGenerate(t *testing.T) {
	mock := &mockBedrockClient{response: "  {\"score\": 80}  "}
	gw, err := NewBedrockGateway(mock, "anthropic.claude-3-haiku", 1000, 0)
	require.NoError(t, err)

	out, err := gw.Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80}`, out)

	require.NotNil(t, mock.input)
	assert.Equal(t, "anthropic.claude-3-haiku", *mock.input.ModelId)
	require.Len(t, mock.input.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, mock.input.Messages[0].Role)
	assert.Equal(t, int32(1000), *mock.input.InferenceConfig.MaxTokens)
}

func TestBedrockGatewayErrorsAreUnavailable(t *testing.T) {
	tests := []struct {
		name string
		mock *mockBedrockClient
	}{
		{"transport", &mockBedrockClient{err: errors.New("connection reset")}},
		{"empty text", &mockBedrockClient{response: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewBedrockGateway(tt.mock, "model", 0, 0)
			require.NoError(t, err)
			_, err = gw.Generate(context.Background(), "p")
			assert.ErrorIs(t, err, ErrModelUnavailable)
		})
	}
}

func TestNewBedrockGatewayValidation(t *testing.T) {
	_, err := NewBedrockGateway(nil, "model", 0, 0)
	assert.Error(t, err)
	_, err = NewBedrockGateway(&mockBedrockClient{}, " ", 0, 0)
	assert.Error(t, err)
}

func TestDisabledGateway(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestFallbackGateway(t *testing.T) {
	logger := logging.Discard()

	t.Run("primary success", func(t *testing.T) {
		primary := &countingGateway{out: "primary"}
		secondary := &countingGateway{out: "secondary"}
		out, err := NewFallbackGateway(primary, secondary, logger).Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "primary", out)
		assert.Equal(t, int32(0), secondary.calls.Load())
	})

	t.Run("primary unavailable", func(t *testing.T) {
		primary := &countingGateway{err: Unavailable("bedrock", errors.New("throttled"))}
		secondary := &countingGateway{out: "secondary"}
		out, err := NewFallbackGateway(primary, secondary, logger).Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "secondary", out)
	})

	t.Run("both unavailable", func(t *testing.T) {
		primary := &countingGateway{err: Unavailable("bedrock", errors.New("down"))}
		secondary := &countingGateway{err: Unavailable("gemini", errors.New("down"))}
		_, err := NewFallbackGateway(primary, secondary, logger).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("other errors not failed over", func(t *testing.T) {
		primary := &countingGateway{err: &DecodeError{Stage: StageJSON, Err: errors.New("x")}}
		secondary := &countingGateway{out: "secondary"}
		_, err := NewFallbackGateway(primary, secondary, logger).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrMalformedOutput)
		assert.Equal(t, int32(0), secondary.calls.Load())
	})

	t.Run("nil secondary returns primary", func(t *testing.T) {
		primary := &countingGateway{}
		assert.Same(t, primary, NewFallbackGateway(primary, nil, logger))
	})
}

func TestGuardedGatewayTimeout(t *testing.T) {
	slow := GatewayFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	gw := NewGuardedGateway(slow, GuardOptions{Timeout: 20 * time.Millisecond}, logging.Discard())

	_, err := gw.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "timed out")
}

func TestGuardedGatewayBreakerOpens(t *testing.T) {
	failing := &countingGateway{err: errors.New("boom")}
	gw := NewGuardedGateway(failing, GuardOptions{
		MinRequests:  3,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	}, logging.Discard())

	for i := 0; i < 3; i++ {
		_, err := gw.Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrModelUnavailable)
	}
	assert.Equal(t, "open", gw.State())

	_, err := gw.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(3), failing.calls.Load())
}

func TestGuardedGatewayPassesThrough(t *testing.T) {
	gw := NewGuardedGateway(&countingGateway{out: "ok"}, GuardOptions{}, nil)
	out, err := gw.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "closed", gw.State())
}

func TestCachingGateway(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingGateway{out: `{"label":"neutral"}`}

	gw := NewCachingGateway(inner, client, time.Minute, logging.Discard())

	for i := 0; i < 3; i++ {
		out, err := gw.Generate(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, `{"label":"neutral"}`, out)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, mr.Exists(CacheKey("same prompt")))

	mr.FastForward(2 * time.Minute)
	_, err := gw.Generate(context.Background(), "same prompt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachingGatewayDoesNotCacheFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingGateway{err: Unavailable("test", errors.New("down"))}

	gw := NewCachingGateway(inner, client, time.Minute, logging.Discard())
	_, err := gw.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.False(t, mr.Exists(CacheKey("p")))
}

func TestCachingGatewayBypassesBrokenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	inner := &countingGateway{out: "fresh"}
	out, err := NewCachingGateway(inner, client, time.Minute, logging.Discard()).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
}

func TestCachingGatewayDisabled(t *testing.T) {
	inner := &countingGateway{}
	assert.Same(t, inner, NewCachingGateway(inner, nil, time.Minute, nil))
}

func TestInstrumentedGatewayOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	ok := NewInstrumentedGateway(&countingGateway{out: "x"}, "bedrock", obs)
	down := NewInstrumentedGateway(&countingGateway{err: Unavailable("bedrock", errors.New("x"))}, "bedrock", obs)
	bad := NewInstrumentedGateway(&countingGateway{err: errors.New("x")}, "bedrock", obs)

	_, _ = ok.Generate(context.Background(), "p")
	_, _ = down.Generate(context.Background(), "p")
	_, _ = bad.Generate(context.Background(), "p")

	assert.Equal(t, []string{OutcomeOK, OutcomeUnavailable, OutcomeError}, obs.outcomes)
}
