package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/metrics"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	providerName = "openai"

	// conclusionFlagged is reported for flagged input. It mirrors the
	// non-compliant conclusion type of the primary provider.
	conclusionFlagged = 2
)

// Moderator is the subset of the go-openai client used by Censor
type Moderator interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// Censor is a RemoteCensor backed by the OpenAI moderation endpoint.
// It reviews text only.
type Censor struct {
	client    Moderator
	modelName string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCensor creates a new OpenAI moderation censor
func NewCensor(client Moderator, modelName string, timeout time.Duration, logger *zap.Logger) *Censor {
	return &Censor{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger,
	}
}

// NewCensorFromConfig builds the go-openai client and wraps it in a Censor
func NewCensorFromConfig(apiKey, baseURL, modelName string, timeout time.Duration, logger *zap.Logger) (*Censor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", core.ErrConfiguration)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return NewCensor(openai.NewClientWithConfig(clientCfg), modelName, timeout, logger), nil
}

// CensorText submits text to the moderation endpoint
func (c *Censor) CensorText(ctx context.Context, text string) (pv *core.ProviderVerdict, err error) {
	start := time.Now()
	defer func() {
		metrics.CensorDuration.WithLabelValues(providerName, string(core.SubjectText)).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = string(core.CensorErrorKindOf(err))
		}
		metrics.CensorRequests.WithLabelValues(providerName, string(core.SubjectText), outcome).Inc()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: c.modelName,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Results) == 0 {
		return nil, core.NewProviderError(0, "moderation response carries no result")
	}

	result := resp.Results[0]
	if !result.Flagged {
		c.logger.Debug("Moderation passed", zap.String("id", resp.ID))
		return &core.ProviderVerdict{
			ConclusionType: core.ConclusionCompliant,
			Conclusion:     "compliant",
			LogID:          resp.ID,
		}, nil
	}

	categories, err := flaggedCategories(result.Categories)
	if err != nil {
		return nil, &core.CensorError{Kind: core.KindProvider, Message: "malformed moderation categories", Err: err}
	}

	pv = &core.ProviderVerdict{
		ConclusionType: conclusionFlagged,
		Conclusion:     "flagged",
		LogID:          resp.ID,
	}
	if len(categories) > 0 {
		pv.Conclusion = "flagged: " + strings.Join(categories, ", ")
	}
	for _, cat := range categories {
		pv.Findings = append(pv.Findings, core.Finding{Message: "flagged category: " + cat})
	}
	return pv, nil
}

// CensorImage is not supported by this provider
func (c *Censor) CensorImage(ctx context.Context, image []byte) (*core.ProviderVerdict, error) {
	metrics.CensorRequests.WithLabelValues(providerName, string(core.SubjectImage), string(core.KindProvider)).Inc()
	return nil, core.NewProviderError(0, "image review is not supported by the openai provider")
}

// flaggedCategories lists the category names set in the result, sorted
func flaggedCategories(categories openai.ResultCategories) ([]string, error) {
	raw, err := json.Marshal(categories)
	if err != nil {
		return nil, err
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(flags))
	for name, set := range flags {
		if set {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func classifyError(err error) *core.CensorError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.NewTimeoutError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			return core.NewAuthError(apiErr.Message, err)
		}
		return core.NewProviderError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return core.NewTransportError("moderation request failed", err)
}
