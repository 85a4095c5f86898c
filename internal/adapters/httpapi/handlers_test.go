package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey/content-review/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReviewer struct {
	verdict   *core.Verdict
	err       error
	lastText  string
	lastImage []byte
}

func (f *fakeReviewer) ReviewText(_ context.Context, text string) (*core.Verdict, error) {
	f.lastText = text
	return f.verdict, f.err
}

func (f *fakeReviewer) ReviewImage(_ context.Context, image []byte) (*core.Verdict, error) {
	f.lastImage = image
	return f.verdict, f.err
}

type fakeEditor struct {
	rules   []core.Rule
	saveErr error
}

func (f *fakeEditor) CurrentRules() []core.Rule {
	return f.rules
}

func (f *fakeEditor) ReplaceAll(rules []core.Rule) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rules = rules
	return nil
}

func newTestServer(reviewer *fakeReviewer, editor *fakeEditor, maxImage int64) http.Handler {
	return NewServer(reviewer, editor, zap.NewNop(), Options{MaxImageBytes: maxImage}).Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartBody(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	if field != "" {
		fw, err := mw.CreateFormFile(field, "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestTextReview(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := newTestServer(reviewer, &fakeEditor{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/text-review", strings.NewReader(`{"text":"hello world"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"approved"}`, rec.Body.String())
	assert.Equal(t, "hello world", reviewer.lastText)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestTextReview_Rejected(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusRejected, Reason: "violates rule: no spam (matched keyword: spam)"}}
	h := newTestServer(reviewer, &fakeEditor{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/text-review", strings.NewReader(`{"text":"spam"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "rejected", body["status"])
	assert.Equal(t, "violates rule: no spam (matched keyword: spam)", body["reason"])
}

func TestTextReview_FailureIsGeneric(t *testing.T) {
	reviewer := &fakeReviewer{err: errors.Join(core.ErrReviewFailed, core.NewAuthError("invalid client", nil))}
	h := newTestServer(reviewer, &fakeEditor{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/text-review", strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"review request failed"}`, rec.Body.String())
}

func TestTextReview_BadBody(t *testing.T) {
	h := newTestServer(&fakeReviewer{}, &fakeEditor{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/text-review", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextReview_LargeTextIsReviewed(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := newTestServer(reviewer, &fakeEditor{}, 0)

	text := strings.Repeat("文", 1<<20)
	payload, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/text-review", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(text), len(reviewer.lastText))
}

func TestTextReview_ConfiguredLimit(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := NewServer(reviewer, &fakeEditor{}, zap.NewNop(), Options{MaxTextBytes: 64}).Handler()

	payload, err := json.Marshal(map[string]string{"text": strings.Repeat("a", 128)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/text-review", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"text too large"}`, rec.Body.String())
	assert.Empty(t, reviewer.lastText)
}

func TestImageReview(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := newTestServer(reviewer, &fakeEditor{}, 1024)

	image := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	body, contentType := multipartBody(t, "image", image)
	req := httptest.NewRequest(http.MethodPost, "/api/image-review", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, image, reviewer.lastImage)
}

func TestImageReview_MissingImage(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := newTestServer(reviewer, &fakeEditor{}, 1024)

	body, contentType := multipartBody(t, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/image-review", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, reviewer.lastImage)

	req = httptest.NewRequest(http.MethodPost, "/api/image-review", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageReview_TooLarge(t *testing.T) {
	reviewer := &fakeReviewer{verdict: &core.Verdict{Status: core.StatusApproved}}
	h := newTestServer(reviewer, &fakeEditor{}, 8)

	body, contentType := multipartBody(t, "image", bytes.Repeat([]byte{1}, 9))
	req := httptest.NewRequest(http.MethodPost, "/api/image-review", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, reviewer.lastImage)
}

func TestSaveRules(t *testing.T) {
	editor := &fakeEditor{}
	h := newTestServer(&fakeReviewer{}, editor, 0)

	payload, err := json.Marshal(map[string]string{"content": "规则ID,规则内容,描述\n1,赌博 博彩,禁止赌博\n"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/save-rules", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Len(t, editor.rules, 1)
	assert.Equal(t, []string{"赌博", "博彩"}, editor.rules[0].Keywords)
}

func TestSaveRules_Failures(t *testing.T) {
	editor := &fakeEditor{saveErr: core.ErrRuleSave}
	h := newTestServer(&fakeReviewer{}, editor, 0)

	for _, content := range []string{"规则ID,规则内容,描述\n1,a,b\n", "no header here"} {
		payload, err := json.Marshal(map[string]string{"content": content})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/save-rules", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestRules(t *testing.T) {
	editor := &fakeEditor{rules: []core.Rule{{ID: "1", Keywords: []string{"a", "b"}, Description: "d"}}}
	h := newTestServer(&fakeReviewer{}, editor, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp rulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, editor.rules, resp.Rules)
	assert.Equal(t, "规则ID,规则内容,描述\n1,a b,d\n", resp.Content)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&fakeReviewer{}, &fakeEditor{}, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "content_review_http_requests_total")
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestServer(&fakeReviewer{}, &fakeEditor{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
