package baidu

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mikey/content-review/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTokens struct {
	mu          sync.Mutex
	token       string
	err         error
	invalidated []string
}

func (s *staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

func (s *staticTokens) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, token)
}

func newTestClient(srvURL string, tokens core.TokenSource, timeout time.Duration) *Client {
	return NewClient(http.DefaultClient, tokens, srvURL+"/text", srvURL+"/image", timeout, timeout, zap.NewNop())
}

func TestClient_CensorTextApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "你好 world", r.PostForm.Get("text"))
		fmt.Fprint(w, `{"log_id":15556561295920002,"conclusion":"合规","conclusionType":1}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &staticTokens{token: "tok"}, time.Second)
	pv, err := c.CensorText(context.Background(), "你好 world")
	require.NoError(t, err)
	assert.Equal(t, 1, pv.ConclusionType)
	assert.Equal(t, "合规", pv.Conclusion)
	assert.Equal(t, "15556561295920002", pv.LogID)
	assert.Empty(t, pv.Findings)
}

func TestClient_CensorTextRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"log_id": 1,
			"conclusion": "不合规",
			"conclusionType": 2,
			"data": [
				{"type": 12, "subType": 2, "conclusion": "不合规", "conclusionType": 2, "msg": "存在文本色情不合规"},
				{"type": 12, "subType": 3, "conclusion": "不合规", "conclusionType": 2, "msg": "存在政治敏感不合规"}
			]
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &staticTokens{token: "tok"}, time.Second)
	pv, err := c.CensorText(context.Background(), "bad")
	require.NoError(t, err)
	require.Len(t, pv.Findings, 2)
	assert.Equal(t, "存在文本色情不合规", pv.Findings[0].Message)
	assert.Equal(t, 12, pv.Findings[0].Type)

	v := core.NormalizeProviderVerdict(pv)
	assert.Equal(t, core.StatusRejected, v.Status)
	assert.Equal(t, "存在文本色情不合规", v.Reason)
}

func TestClient_CensorImageSendsBase64(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/image", r.URL.Path)
		require.NoError(t, r.ParseForm())
		decoded, err := base64.StdEncoding.DecodeString(r.PostForm.Get("image"))
		require.NoError(t, err)
		assert.Equal(t, image, decoded)
		fmt.Fprint(w, `{"log_id":2,"conclusion":"合规","conclusionType":1}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &staticTokens{token: "tok"}, time.Second)
	pv, err := c.CensorImage(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, 1, pv.ConclusionType)
}

func TestClient_ProviderErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"log_id":3,"error_code":216201,"error_msg":"image format error"}`)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "tok"}
	c := newTestClient(srv.URL, tokens, time.Second)
	_, err := c.CensorImage(context.Background(), []byte("x"))
	require.Error(t, err)

	var ce *core.CensorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindProvider, ce.Kind)
	assert.Equal(t, 216201, ce.Code)
	assert.Equal(t, "image format error", ce.Message)
	assert.Empty(t, tokens.invalidated)
}

func TestClient_ExpiredTokenIsInvalidated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error_code":111,"error_msg":"Access token expired"}`)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale"}
	c := newTestClient(srv.URL, tokens, time.Second)
	_, err := c.CensorText(context.Background(), "hello")

	assert.Equal(t, core.KindProvider, core.CensorErrorKindOf(err))
	assert.Equal(t, []string{"stale"}, tokens.invalidated)
}

func TestClient_AuthFailurePropagates(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	tokens := &staticTokens{err: core.NewAuthError("bad credentials", nil)}
	c := newTestClient(srv.URL, tokens, time.Second)
	_, err := c.CensorText(context.Background(), "hello")

	assert.Equal(t, core.KindAuth, core.CensorErrorKindOf(err))
	assert.False(t, called)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &staticTokens{token: "tok"}, 50*time.Millisecond)
	_, err := c.CensorImage(context.Background(), []byte("slow"))
	assert.Equal(t, core.KindTimeout, core.CensorErrorKindOf(err))
}

func TestClient_TransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &staticTokens{token: "tok"}, time.Second)
	_, err := c.CensorText(context.Background(), "hello")
	assert.Equal(t, core.KindTransport, core.CensorErrorKindOf(err))

	srv.Close()
	_, err = c.CensorText(context.Background(), "hello")
	assert.Equal(t, core.KindTransport, core.CensorErrorKindOf(err))
}

func TestClient_MalformedResponses(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>oops</html>`,
		"no conclusion": `{"log_id":4}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, &staticTokens{token: "tok"}, time.Second)
			_, err := c.CensorText(context.Background(), "hello")
			assert.Equal(t, core.KindProvider, core.CensorErrorKindOf(err))
		})
	}
}
