package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/snappy-loop/charstudio/internal/models"
)

var (
	// ErrNoImageGenerated is returned when the response carries no candidates.
	ErrNoImageGenerated = errors.New("no image generated")
	// ErrNoImageData is returned when the first candidate has no inline image part.
	ErrNoImageData = errors.New("no image data found in response")
)

const characterPromptTemplate = `Convert the person in this image into a cute, high-quality 3D stylized full-body character (Disney/Pixar style).
IMPORTANT: Show the entire character from head to toe, including their legs and feet.
The character should look like they are in the %s age group.
Maintain the hair color, eye color, and general features of the person but make them incredibly cute with big expressive eyes,
soft 3D lighting, and a clay-like or smooth vinyl texture.
The character should be standing on a simple ground plane with a soft pastel background.
Output only the resulting image.`

// CharacterPrompt returns the instruction sent alongside the photo.
func CharacterPrompt(age models.AgeGroup) string {
	return fmt.Sprintf(characterPromptTemplate, age)
}

// GenerateCharacter turns the photo into a stylized 3D character for the given age group.
// It makes exactly one Gemini call; there is no retry. Transport errors are
// logged and returned unchanged.
func (c *Client) GenerateCharacter(ctx context.Context, img models.ImagePayload, age models.AgeGroup) (*models.ImagePayload, error) {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = models.DefaultImageMIMEType
	}

	log.Debug().
		Str("age_group", string(age)).
		Str("mime_type", mimeType).
		Int("image_size_bytes", len(img.Data)).
		Msg("Generating character")

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mimeType),
			genai.NewPartFromText(CharacterPrompt(age)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: c.aspectRatio},
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.modelImage, contents, config)
	if err != nil {
		log.Error().Err(err).
			Str("model", c.modelImage).
			Str("age_group", string(age)).
			Dur("elapsed", time.Since(start)).
			Msg("Gemini API error")
		return nil, err
	}

	return extractImage(resp)
}

// extractImage returns the first inline image of the first candidate, re-typed as PNG.
func extractImage(resp *genai.GenerateContentResponse) (*models.ImagePayload, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		logGeminiResponse("GenerateCharacter", "candidates=0")
		return nil, ErrNoImageGenerated
	}
	logGeminiResponse("GenerateCharacter", fmt.Sprintf("candidates=%d", len(resp.Candidates)))

	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil, ErrNoImageData
	}
	for j, part := range cand.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		log.Info().
			Str("caller", "GenerateCharacter").
			Int("image_size_bytes", len(part.InlineData.Data)).
			Str("mime_type", part.InlineData.MIMEType).
			Int("part", j).
			Msg("Gemini response (image blob)")
		return &models.ImagePayload{
			Data:     part.InlineData.Data,
			MIMEType: models.OutputImageMIMEType,
		}, nil
	}

	log.Warn().
		Int("parts", len(cand.Content.Parts)).
		Str("finish_reason", string(cand.FinishReason)).
		Msg("No image blob in Gemini response")
	return nil, ErrNoImageData
}
