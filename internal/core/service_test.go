package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMatcher struct {
	result MatchResult
}

func (m *fakeMatcher) Check(string) MatchResult {
	return m.result
}

type fakeCensor struct {
	mu         sync.Mutex
	textCalls  int
	imageCalls int
	verdict    *ProviderVerdict
	err        error
}

func (c *fakeCensor) CensorText(context.Context, string) (*ProviderVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textCalls++
	return c.verdict, c.err
}

func (c *fakeCensor) CensorImage(context.Context, []byte) (*ProviderVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imageCalls++
	return c.verdict, c.err
}

type mapCache struct {
	entries map[string]*CacheEntry
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*CacheEntry{}}
}

func (c *mapCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	return nil, errors.New("not found")
}

func (c *mapCache) Set(_ context.Context, e *CacheEntry) error {
	c.entries[e.Key] = e
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Cleanup(context.Context) error {
	return nil
}

func TestReviewText_LocalMatchSkipsRemote(t *testing.T) {
	censor := &fakeCensor{verdict: &ProviderVerdict{ConclusionType: 1}}
	matcher := &fakeMatcher{result: MatchResult{
		Matched: true,
		Rule:    &Rule{ID: "R1", Keywords: []string{"spam", "scam"}, Description: "no spam"},
		Keyword: "scam",
	}}
	svc := NewReviewService(matcher, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewText(context.Background(), "this is a scam")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, v.Status)
	assert.Equal(t, "violates rule: no spam (matched keyword: scam)", v.Reason)
	assert.Equal(t, 0, censor.textCalls)
}

func TestReviewText_RemoteApproved(t *testing.T) {
	censor := &fakeCensor{verdict: &ProviderVerdict{ConclusionType: 1, Conclusion: "合规"}}
	svc := NewReviewService(&fakeMatcher{}, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, v.Status)
	assert.Empty(t, v.Reason)
	assert.Equal(t, 1, censor.textCalls)
}

func TestReviewText_RemoteRejectedUsesFirstFinding(t *testing.T) {
	censor := &fakeCensor{verdict: &ProviderVerdict{
		ConclusionType: 2,
		Conclusion:     "不合规",
		Findings:       []Finding{{Message: "存在暴恐违禁不合规"}, {Message: "second"}},
	}}
	svc := NewReviewService(&fakeMatcher{}, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewText(context.Background(), "bad words")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, v.Status)
	assert.Equal(t, "存在暴恐违禁不合规", v.Reason)
}

func TestReviewText_FailureIsNeverAVerdict(t *testing.T) {
	censor := &fakeCensor{err: NewTimeoutError(context.DeadlineExceeded)}
	svc := NewReviewService(&fakeMatcher{}, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewText(context.Background(), "hello")
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReviewFailed)
	assert.Equal(t, KindTimeout, CensorErrorKindOf(err))
}

func TestReviewImage_AlwaysRemote(t *testing.T) {
	censor := &fakeCensor{verdict: &ProviderVerdict{ConclusionType: 1}}
	matcher := &fakeMatcher{result: MatchResult{Matched: true, Rule: &Rule{ID: "R1"}, Keyword: "x"}}
	svc := NewReviewService(matcher, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewImage(context.Background(), []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, v.Status)
	assert.Equal(t, 1, censor.imageCalls)
}

func TestReviewImage_TimeoutIsNeverAVerdict(t *testing.T) {
	censor := &fakeCensor{err: NewTimeoutError(context.DeadlineExceeded)}
	svc := NewReviewService(&fakeMatcher{}, censor, nil, zap.NewNop(), false, 0)

	v, err := svc.ReviewImage(context.Background(), []byte{0xff, 0xd8, 0xff})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReviewFailed)
	assert.Equal(t, KindTimeout, CensorErrorKindOf(err))
	assert.Equal(t, 1, censor.imageCalls)
}

func TestReviewImage_ProviderError(t *testing.T) {
	censor := &fakeCensor{err: NewProviderError(216201, "image format error")}
	svc := NewReviewService(&fakeMatcher{}, censor, nil, zap.NewNop(), false, 0)

	_, err := svc.ReviewImage(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReviewFailed)

	var ce *CensorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindProvider, ce.Kind)
	assert.Equal(t, 216201, ce.Code)
}

func TestReviewText_CacheHitSkipsRemote(t *testing.T) {
	censor := &fakeCensor{verdict: &ProviderVerdict{ConclusionType: 2, Conclusion: "不合规"}}
	cache := newMapCache()
	svc := NewReviewService(&fakeMatcher{}, censor, cache, zap.NewNop(), true, time.Hour)

	first, err := svc.ReviewText(context.Background(), "repeat me")
	require.NoError(t, err)
	second, err := svc.ReviewText(context.Background(), "repeat me")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, censor.textCalls)
	assert.Contains(t, cache.entries, SubjectDigest(SubjectText, []byte("repeat me")))
}

func TestReviewText_FailureNotCached(t *testing.T) {
	censor := &fakeCensor{err: NewTransportError("connection refused", nil)}
	cache := newMapCache()
	svc := NewReviewService(&fakeMatcher{}, censor, cache, zap.NewNop(), true, time.Hour)

	_, err := svc.ReviewText(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, cache.entries)
}

func TestSubjectDigest_SeparatesKinds(t *testing.T) {
	text := SubjectDigest(SubjectText, []byte("same"))
	image := SubjectDigest(SubjectImage, []byte("same"))

	assert.NotEqual(t, text, image)
	assert.Equal(t, text, SubjectDigest(SubjectText, []byte("same")))
}
