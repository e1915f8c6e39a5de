package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/provider"
)

// CallAI sends prompt to client and returns the trimmed response. Failures
// come back as *ArtifactError labelled with label.
func CallAI(ctx context.Context, client provider.ProviderClient, prompt, modelID, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ArtifactError{Kind: Cancelled, Artifact: label, Cause: err}
	}

	resp, err := client.Generate(ctx, newRequest(prompt, modelID, label))
	if err != nil {
		return "", classify(ctx, label, err)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", &ArtifactError{Kind: EmptyResponse, Artifact: label}
	}
	return content, nil
}

// CallAIStream is CallAI over the provider's stream. onToken receives each
// delta as it arrives and may be nil.
func CallAIStream(ctx context.Context, client provider.ProviderClient, prompt, modelID, label string, onToken func(string)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ArtifactError{Kind: Cancelled, Artifact: label, Cause: err}
	}

	ch, err := client.Stream(ctx, newRequest(prompt, modelID, label))
	if err != nil {
		return "", classify(ctx, label, err)
	}

	var b strings.Builder
	final := ""
	for chunk := range ch {
		if chunk.Error != nil {
			// Drain so the producer can exit.
			for range ch {
			}
			return "", classify(ctx, label, chunk.Error)
		}
		if chunk.Delta != "" {
			b.WriteString(chunk.Delta)
			if onToken != nil {
				onToken(chunk.Delta)
			}
		}
		if chunk.Done {
			final = chunk.Content
		}
	}

	if err := ctx.Err(); err != nil {
		return "", &ArtifactError{Kind: Cancelled, Artifact: label, Cause: err}
	}

	if final == "" {
		final = b.String()
	}
	content := strings.TrimSpace(final)
	if content == "" {
		return "", &ArtifactError{Kind: EmptyResponse, Artifact: label}
	}
	return content, nil
}

func newRequest(prompt, modelID, label string) *provider.GenerateRequest {
	return &provider.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Model:        modelID,
		Temperature:  0.3,
		Metadata:     map[string]string{"artifact": label},
	}
}

func classify(ctx context.Context, label string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &ArtifactError{Kind: Cancelled, Artifact: label, Cause: err}
	}
	return &ArtifactError{Kind: ProviderCallFailed, Artifact: label, Cause: err}
}
