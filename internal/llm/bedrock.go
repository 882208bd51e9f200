package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConverseAPI is the subset of the Bedrock runtime client the gateway uses.
type BedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockGateway sends each prompt as a single user turn to the Converse API.
type BedrockGateway struct {
	api         BedrockConverseAPI
	modelID     string
	maxTokens   int32
	temperature float32
}

// NewBedrockGateway builds a gateway for modelID. maxTokens <= 0 leaves the
// provider default in place.
func NewBedrockGateway(api BedrockConverseAPI, modelID string, maxTokens int, temperature float64) (*BedrockGateway, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockGateway{
		api:         api,
		modelID:     modelID,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}, nil
}

// Generate implements Gateway.
func (g *BedrockGateway) Generate(ctx context.Context, prompt string) (string, error) {
	inference := &brtypes.InferenceConfiguration{Temperature: aws.Float32(g.temperature)}
	if g.maxTokens > 0 {
		inference.MaxTokens = aws.Int32(g.maxTokens)
	}

	out, err := g.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: inference,
	})
	if err != nil {
		return "", Unavailable("bedrock", err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return "", Unavailable("bedrock", err)
	}
	return text, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected output type %T", out.Output)
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("response contained no text")
	}
	return text, nil
}
