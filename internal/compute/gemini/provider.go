package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Provider adapts prompt-based Gemini generation to the compute contract.
type Provider struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewProvider creates a compute provider backed by the given generator.
func NewProvider(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Provider {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Provider{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Compute evaluates the subject against the reference and coerces the model
// reply into the strict result shape.
func (p *Provider) Compute(ctx context.Context, req compute.Request) (*compute.Result, error) {
	if strings.TrimSpace(req.ReferenceText) == "" {
		return nil, fmt.Errorf("%w: reference text is empty", compute.ErrUpstreamRejected)
	}

	prompt := buildPrompt(req)

	p.logger.Debug("gemini compute request",
		zap.String("phase", req.Phase.String()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, classifyGenerationError(err)
	}

	p.logger.Debug("gemini compute response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildPrompt(req compute.Request) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{SUBJECT}}\n\nJob posting:\n{{REFERENCE}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{SUBJECT}}", req.SubjectText)
	prompt = strings.ReplaceAll(prompt, "{{REFERENCE}}", req.ReferenceText)
	prompt = strings.ReplaceAll(prompt, "{{PHASE}}", req.Phase.String())
	prompt = strings.ReplaceAll(prompt, "{{AUX_SCORE}}", strconv.FormatFloat(req.AuxiliaryScore, 'f', -1, 64))

	return prompt
}

func parseResponse(raw string) (*compute.Result, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse gemini response: %v", compute.ErrUpstreamUnavailable, err)
	}

	return compute.ResultFromLoose(data), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func classifyGenerationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", compute.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", compute.ErrUpstreamUnavailable, err)
}
