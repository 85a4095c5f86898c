package core

import (
	"context"
)

// RemoteCensor classifies subjects with an upstream moderation provider
type RemoteCensor interface {
	// CensorText submits text for classification
	CensorText(ctx context.Context, text string) (*ProviderVerdict, error)

	// CensorImage submits a whole image for classification
	CensorImage(ctx context.Context, image []byte) (*ProviderVerdict, error)
}

// TokenSource hands out a valid upstream access token
type TokenSource interface {
	// Token returns a token that is valid at the time of the call
	Token(ctx context.Context) (string, error)
}

// RuleMatcher checks text against the local keyword rules
type RuleMatcher interface {
	Check(text string) MatchResult
}

// CacheRepository defines the interface for caching remote verdicts
type CacheRepository interface {
	// Get retrieves a cached entry for a subject digest
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
