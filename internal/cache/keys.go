package cache

import "fmt"

// RateLimitKey is the per-address counter key for public submissions.
func RateLimitKey(clientIP string) string {
	return fmt.Sprintf("logsink:ratelimit:%s", clientIP)
}
