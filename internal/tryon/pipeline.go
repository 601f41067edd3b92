package tryon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tryon-studio/internal/imagenorm"
	"tryon-studio/internal/prompt"
)

const DefaultTimeout = 60 * time.Second

type Options struct {
	Generator  Generator
	Normalizer imagenorm.Normalizer
	Timeout    time.Duration
	Logger     *slog.Logger
}

type Pipeline struct {
	gen        Generator
	normalizer imagenorm.Normalizer
	timeout    time.Duration
	logger     *slog.Logger
}

func NewPipeline(opts Options) *Pipeline {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		gen:        opts.Generator,
		normalizer: opts.Normalizer,
		timeout:    timeout,
		logger:     logger,
	}
}

func (p *Pipeline) Prepare(person, garment UploadedImage) (Request, error) {
	if person.IsEmpty() {
		return Request{}, fmt.Errorf("person image: %w", ErrMissingImage)
	}
	if garment.IsEmpty() {
		return Request{}, fmt.Errorf("garment image: %w", ErrMissingImage)
	}

	var normPerson, normGarment imagenorm.Image
	var eg errgroup.Group
	eg.Go(func() error {
		img, err := p.normalize(person)
		if err != nil {
			return fmt.Errorf("person image: %w", err)
		}
		normPerson = img
		return nil
	})
	eg.Go(func() error {
		img, err := p.normalize(garment)
		if err != nil {
			return fmt.Errorf("garment image: %w", err)
		}
		normGarment = img
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Request{}, err
	}

	return NewRequest(normPerson, normGarment, prompt.TryOn())
}

func (p *Pipeline) normalize(u UploadedImage) (imagenorm.Image, error) {
	if len(u.Data) > 0 {
		return p.normalizer.NormalizeBytes(u.Data)
	}
	return p.normalizer.Normalize(u.Encoded)
}

func (p *Pipeline) Execute(ctx context.Context, req Request) Outcome {
	if p.gen == nil {
		return Failed(Classify(ErrNotConfigured))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.gen.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == context.DeadlineExceeded {
			err = context.DeadlineExceeded
		}
		return Failed(Classify(err))
	}

	img, err := Evaluate(res)
	if err != nil {
		return Failed(Classify(err))
	}
	return Succeeded(img)
}

func (p *Pipeline) Run(ctx context.Context, person, garment UploadedImage) Outcome {
	start := time.Now()

	req, err := p.Prepare(person, garment)
	if err != nil {
		failure := Classify(err)
		p.logger.Warn("try-on rejected", "kind", failure.Kind, "err", err)
		return Failed(failure)
	}

	out := p.Execute(ctx, req)
	if out.OK() {
		p.logger.Info("try-on generated",
			"person", fmt.Sprintf("%dx%d", req.Person.Width, req.Person.Height),
			"garment", fmt.Sprintf("%dx%d", req.Garment.Width, req.Garment.Height),
			"bytes", len(out.Image.Data),
			"dur_ms", time.Since(start).Milliseconds(),
		)
		return out
	}

	p.logger.Warn("try-on failed",
		"kind", out.Failure.Kind,
		"message", out.Failure.Message,
		"dur_ms", time.Since(start).Milliseconds(),
	)
	return out
}
