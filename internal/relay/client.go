package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"tryon-studio/internal/tryon"
)

type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	rc     *resty.Client
	logger *slog.Logger
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("relay url is empty")
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{rc: rc, logger: logger}, nil
}

func (c *Client) Generate(ctx context.Context, req tryon.Request) (tryon.Result, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(GenerateRequest{
			PersonImage:   req.Person.Encoded,
			ClothingImage: req.Garment.Encoded,
		}).
		Post(Path)
	if err != nil {
		return tryon.Result{}, fmt.Errorf("relay request: %w", err)
	}

	var body GenerateResponse
	if raw := resp.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil && !resp.IsError() {
			return tryon.Result{}, fmt.Errorf("decode relay response: %w", err)
		}
	}

	if resp.IsError() {
		remoteErr := &tryon.RemoteError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(body.Error),
		}
		if kind, ok := tryon.ParseErrorKind(body.Code); ok {
			remoteErr.Kind = kind
		}
		if remoteErr.Message == "" {
			remoteErr.Message = http.StatusText(resp.StatusCode())
		}
		c.logger.Warn("relay request failed", "status", resp.StatusCode(), "code", body.Code)
		return tryon.Result{}, remoteErr
	}

	if strings.TrimSpace(body.Result) == "" {
		return tryon.Result{}, nil
	}

	mediaType, payload, err := tryon.SplitDataURL(body.Result)
	if err != nil {
		return tryon.Result{}, fmt.Errorf("relay result: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return tryon.Result{}, fmt.Errorf("relay result: decode base64: %w", err)
	}

	return tryon.Result{Candidates: []tryon.Candidate{{
		Finish: tryon.FinishStop,
		Parts:  []tryon.Part{tryon.ImagePart{Data: data, MediaType: tryon.DetectMediaType(mediaType, data)}},
	}}}, nil
}
