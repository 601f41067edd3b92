package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"tryon-studio/internal/tryon"
)

type SDKClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewSDK(ctx context.Context, opts Options) (*SDKClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, tryon.ErrNotConfigured
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if baseURL := strings.TrimRight(opts.BaseURL, "/"); baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL + "/"
	}
	if apiVersion := strings.TrimSpace(opts.APIVersion); apiVersion != "" {
		cfg.HTTPOptions.APIVersion = apiVersion
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &SDKClient{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (s *SDKClient) Generate(ctx context.Context, req tryon.Request) (tryon.Result, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(req.Instruction),
		genai.NewPartFromBytes(req.Person.Data, req.Person.MediaType),
		genai.NewPartFromBytes(req.Garment.Data, req.Garment.MediaType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, sdkConfig())
	if err != nil {
		if remoteErr := fromAPIError(err); remoteErr != nil {
			s.logger.Warn("genai request failed", "model", s.model, "status", remoteErr.StatusCode, "reason", remoteErr.Status)
			return tryon.Result{}, remoteErr
		}
		return tryon.Result{}, fmt.Errorf("failed to generate content: %w", err)
	}

	res := fromSDKResponse(resp)
	s.logger.Debug("genai response", "model", s.model, "candidates", len(res.Candidates), "block_reason", res.BlockReason)
	return res, nil
}

func sdkConfig() *genai.GenerateContentConfig {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
		})
	}

	return &genai.GenerateContentConfig{
		Temperature:        genai.Ptr[float32](0),
		ResponseModalities: []string{"IMAGE", "TEXT"},
		SafetySettings:     settings,
		ImageConfig:        &genai.ImageConfig{AspectRatio: aspectRatio},
	}
}

func fromSDKResponse(resp *genai.GenerateContentResponse) tryon.Result {
	var res tryon.Result
	if resp == nil {
		return res
	}
	if resp.PromptFeedback != nil {
		res.BlockReason = string(resp.PromptFeedback.BlockReason)
	}

	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		out := tryon.Candidate{Finish: FinishStatus(string(cand.FinishReason))}
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				switch {
				case p == nil:
				case p.InlineData != nil && len(p.InlineData.Data) > 0:
					out.Parts = append(out.Parts, tryon.ImagePart{Data: p.InlineData.Data, MediaType: p.InlineData.MIMEType})
				case p.Text != "":
					out.Parts = append(out.Parts, tryon.TextPart{Text: p.Text})
				}
			}
		}
		res.Candidates = append(res.Candidates, out)
	}
	return res
}

func fromAPIError(err error) *tryon.RemoteError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return remoteFromAPI(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return remoteFromAPI(*apiErrPtr)
	}
	return nil
}

func remoteFromAPI(apiErr genai.APIError) *tryon.RemoteError {
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	return &tryon.RemoteError{
		StatusCode: apiErr.Code,
		Status:     apiErr.Status,
		Message:    msg,
	}
}
