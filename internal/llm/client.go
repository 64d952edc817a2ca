package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// maxGeminiResponseLogBytes is the max length of a Gemini response summary to log in full (to avoid huge logs).
const maxGeminiResponseLogBytes = 8192

// contentGenerator is the part of the genai Models service used by Client.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://localhost:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	req2.Host = e.base.Host
	return e.next.RoundTrip(req2)
}

// logGeminiResponse logs a Gemini response summary, truncating if over maxGeminiResponseLogBytes.
func logGeminiResponse(caller, raw string) {
	if len(raw) <= maxGeminiResponseLogBytes {
		log.Info().Str("caller", caller).Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Info().
		Str("caller", caller).
		Str("gemini_response", raw[:maxGeminiResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}

// Options configures a Client.
type Options struct {
	APIKey      string
	APIEndpoint string // optional base URL override
	ModelImage  string // default gemini-2.5-flash-image
	AspectRatio string // default 3:4
}

// Client wraps the Gemini image model.
type Client struct {
	modelImage  string
	aspectRatio string
	models      contentGenerator
}

// NewClient creates a Gemini client for character generation.
// The API key is taken from opts only; the process environment is not consulted.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.APIEndpoint != "" {
		if httpClient := httpClientForEndpoint(opts.APIEndpoint); httpClient != nil {
			cfg.HTTPClient = httpClient
		}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	c := newClient(client.Models, opts)

	log.Info().
		Str("model_image", c.modelImage).
		Str("aspect_ratio", c.aspectRatio).
		Str("api_endpoint", opts.APIEndpoint).
		Msg("LLM client initialized")

	return c, nil
}

func newClient(models contentGenerator, opts Options) *Client {
	modelImage := opts.ModelImage
	if modelImage == "" {
		modelImage = "gemini-2.5-flash-image"
	}
	aspectRatio := opts.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "3:4"
	}
	return &Client{
		modelImage:  modelImage,
		aspectRatio: aspectRatio,
		models:      models,
	}
}
