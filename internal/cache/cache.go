package cache

import (
	"context"
	"strconv"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

const latestInterviewsPrefix = "interviews:latest:"

// LatestInterviewsKey caches the "other people's interviews" feed of one user.
func LatestInterviewsKey(userID string, limit int) string {
	return latestInterviewsPrefix + userID + ":" + strconv.Itoa(limit)
}

// LatestInterviewsPrefix covers every user's feed; a new interview invalidates all of them.
func LatestInterviewsPrefix() string {
	return latestInterviewsPrefix
}
