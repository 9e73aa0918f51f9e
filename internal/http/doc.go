// Package http provides the HTTP client used to fetch image payloads.
//
// This package handles:
//   - Connection pooling sized for the worker pool
//   - A per-request timeout covering the body read
//   - A browser-like User-Agent header
//   - Classification of non-OK responses into StatusError
//
// Retries are not done here; callers own the retry policy.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Timeout:   10 * time.Second,
//	    UserAgent: http.DefaultUserAgent,
//	})
//
//	data, err := client.Fetch(ctx, url)
package http
