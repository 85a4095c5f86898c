package baidu

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultTextURL is the user-defined text censor endpoint
	DefaultTextURL = "https://aip.baidubce.com/rest/2.0/solution/v1/text_censor/v2/user_defined"
	// DefaultImageURL is the user-defined image censor endpoint
	DefaultImageURL = "https://aip.baidubce.com/rest/2.0/solution/v1/img_censor/v2/user_defined"

	providerName     = "baidu"
	maxResponseBytes = 4 << 20
)

// Error codes meaning the access token is no longer accepted
const (
	errCodeTokenInvalid = 110
	errCodeTokenExpired = 111
)

type censorResponse struct {
	LogID          json.Number   `json:"log_id"`
	ErrorCode      int           `json:"error_code"`
	ErrorMsg       string        `json:"error_msg"`
	Conclusion     string        `json:"conclusion"`
	ConclusionType *int          `json:"conclusionType"`
	Data           []censorEntry `json:"data"`
}

type censorEntry struct {
	Type           int    `json:"type"`
	SubType        int    `json:"subType"`
	Conclusion     string `json:"conclusion"`
	ConclusionType int    `json:"conclusionType"`
	Msg            string `json:"msg"`
}

// Client is a RemoteCensor backed by the Baidu content censor API
type Client struct {
	httpClient   *http.Client
	tokens       core.TokenSource
	textURL      string
	imageURL     string
	textTimeout  time.Duration
	imageTimeout time.Duration
	logger       *zap.Logger
}

// NewClient creates a new Baidu censor client
func NewClient(
	httpClient *http.Client,
	tokens core.TokenSource,
	textURL string,
	imageURL string,
	textTimeout time.Duration,
	imageTimeout time.Duration,
	logger *zap.Logger,
) *Client {
	if textURL == "" {
		textURL = DefaultTextURL
	}
	if imageURL == "" {
		imageURL = DefaultImageURL
	}

	return &Client{
		httpClient:   httpClient,
		tokens:       tokens,
		textURL:      textURL,
		imageURL:     imageURL,
		textTimeout:  textTimeout,
		imageTimeout: imageTimeout,
		logger:       logger,
	}
}

// CensorText submits text for classification
func (c *Client) CensorText(ctx context.Context, text string) (*core.ProviderVerdict, error) {
	form := url.Values{}
	form.Set("text", text)
	return c.censor(ctx, core.SubjectText, c.textURL, c.textTimeout, form)
}

// CensorImage submits an image for classification. The image is encoded
// as a single base64 blob.
func (c *Client) CensorImage(ctx context.Context, image []byte) (*core.ProviderVerdict, error) {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	return c.censor(ctx, core.SubjectImage, c.imageURL, c.imageTimeout, form)
}

func (c *Client) censor(
	ctx context.Context,
	kind core.SubjectKind,
	endpoint string,
	timeout time.Duration,
	form url.Values,
) (pv *core.ProviderVerdict, err error) {
	start := time.Now()
	defer func() {
		metrics.CensorDuration.WithLabelValues(providerName, string(kind)).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = string(core.CensorErrorKindOf(err))
		}
		metrics.CensorRequests.WithLabelValues(providerName, string(kind), outcome).Inc()
	}()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if core.CensorErrorKindOf(err) == core.KindAuth {
			return nil, err
		}
		return nil, core.NewAuthError("failed to obtain access token", err)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, core.NewTransportError("invalid censor url", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, core.NewTransportError("failed to build censor request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending censor request",
		zap.String("kind", string(kind)),
		zap.Int("body_size", int(req.ContentLength)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("censor request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError("failed to read censor response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.NewTransportError(fmt.Sprintf("censor endpoint returned status %d", resp.StatusCode), nil)
	}

	var cr censorResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, &core.CensorError{Kind: core.KindProvider, Message: "malformed censor response", Err: err}
	}

	if cr.ErrorCode != 0 {
		if cr.ErrorCode == errCodeTokenInvalid || cr.ErrorCode == errCodeTokenExpired {
			if inv, ok := c.tokens.(interface{ Invalidate(string) }); ok {
				inv.Invalidate(token)
			}
		}
		return nil, core.NewProviderError(cr.ErrorCode, cr.ErrorMsg)
	}

	if cr.ConclusionType == nil {
		return nil, core.NewProviderError(0, "censor response carries no conclusion")
	}

	return cr.toProviderVerdict(), nil
}

func (cr *censorResponse) toProviderVerdict() *core.ProviderVerdict {
	pv := &core.ProviderVerdict{
		ConclusionType: *cr.ConclusionType,
		Conclusion:     cr.Conclusion,
		LogID:          cr.LogID.String(),
		Findings:       make([]core.Finding, 0, len(cr.Data)),
	}
	for _, d := range cr.Data {
		pv.Findings = append(pv.Findings, core.Finding{
			Type:    d.Type,
			SubType: d.SubType,
			Message: d.Msg,
		})
	}
	return pv
}

func classifyTransportError(msg string, err error) *core.CensorError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.NewTimeoutError(err)
	}
	return core.NewTransportError(msg, err)
}
