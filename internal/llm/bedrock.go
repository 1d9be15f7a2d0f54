package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	defaultBedrockMaxTokens = 1024
)

type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider calls an Anthropic model hosted on Amazon Bedrock.
type BedrockProvider struct {
	client    bedrockInvoker
	modelID   string
	maxTokens int
}

func NewBedrockProvider(ctx context.Context, region, modelID string, maxTokens int) (*BedrockProvider, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("bedrock model id is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), modelID, maxTokens), nil
}

func newBedrockProvider(client bedrockInvoker, modelID string, maxTokens int) *BedrockProvider {
	if maxTokens <= 0 {
		maxTokens = defaultBedrockMaxTokens
	}
	return &BedrockProvider{client: client, modelID: modelID, maxTokens: maxTokens}
}

type bedrockRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system"`
	Messages         []Message `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *BedrockProvider) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        p.maxTokens,
		System:           systemPrompt,
		Messages:         messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var res bedrockResponse
	if err := json.Unmarshal(out.Body, &res); err != nil {
		return "", fmt.Errorf("decode bedrock response: %w", err)
	}
	for _, block := range res.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errNoText
}
