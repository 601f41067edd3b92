package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"tryon-studio/internal/tryon"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.5-flash-image"

	aspectRatio     = "3:4"
	safetyThreshold = "BLOCK_ONLY_HIGH"
)

var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		model:      model,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

func (c *Client) Generate(ctx context.Context, req tryon.Request) (tryon.Result, error) {
	if c.httpClient == nil {
		return tryon.Result{}, errors.New("http client is nil")
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return tryon.Result{}, tryon.ErrNotConfigured
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return tryon.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tryon.Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return tryon.Result{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return tryon.Result{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		remoteErr := decodeError(httpResp.StatusCode, rawBody)
		c.logger.Warn("gemini request failed", "model", c.model, "status", httpResp.StatusCode, "reason", remoteErr.Status)
		return tryon.Result{}, remoteErr
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return tryon.Result{}, fmt.Errorf("decode response: %w", err)
	}

	res, err := toResult(decoded)
	if err != nil {
		return tryon.Result{}, err
	}

	c.logger.Debug("gemini response",
		"model", c.model,
		"candidates", len(res.Candidates),
		"block_reason", res.BlockReason,
	)
	return res, nil
}

func buildRequest(req tryon.Request) generateContentRequest {
	settings := make([]safetySetting, 0, len(safetyCategories))
	for _, category := range safetyCategories {
		settings = append(settings, safetySetting{Category: category, Threshold: safetyThreshold})
	}

	return generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: req.Instruction},
				{InlineData: &blob{MimeType: req.Person.MediaType, Data: req.Person.Encoded}},
				{InlineData: &blob{MimeType: req.Garment.MediaType, Data: req.Garment.Encoded}},
			},
		}},
		SafetySettings: settings,
		GenerationConfig: generationConfig{
			Temperature:        new(float64),
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &imageConfig{AspectRatio: aspectRatio},
		},
	}
}

func toResult(resp generateContentResponse) (tryon.Result, error) {
	var res tryon.Result
	if resp.PromptFeedback != nil {
		res.BlockReason = resp.PromptFeedback.BlockReason
	}

	for i, cand := range resp.Candidates {
		out := tryon.Candidate{Finish: FinishStatus(cand.FinishReason)}
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				switch {
				case p.InlineData != nil && p.InlineData.Data != "":
					data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						return tryon.Result{}, fmt.Errorf("decode candidate %d inline data: %w", i, err)
					}
					out.Parts = append(out.Parts, tryon.ImagePart{Data: data, MediaType: p.InlineData.MimeType})
				case p.Text != "":
					out.Parts = append(out.Parts, tryon.TextPart{Text: p.Text})
				}
			}
		}
		res.Candidates = append(res.Candidates, out)
	}
	return res, nil
}

func FinishStatus(reason string) tryon.FinishStatus {
	switch strings.ToUpper(strings.TrimSpace(reason)) {
	case "":
		return tryon.FinishUnspecified
	case "STOP":
		return tryon.FinishStop
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return tryon.FinishSafety
	default:
		return tryon.FinishOther
	}
}

func decodeError(statusCode int, body []byte) *tryon.RemoteError {
	remoteErr := &tryon.RemoteError{StatusCode: statusCode}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Code != 0 {
			remoteErr.StatusCode = envelope.Error.Code
		}
		remoteErr.Status = envelope.Error.Status
		remoteErr.Message = envelope.Error.Message
		return remoteErr
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 8<<10 {
		msg = msg[:8<<10]
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	remoteErr.Message = msg
	return remoteErr
}
