// Package httputil provides HTTP helpers used when fetching media to
// determine image dimensions.
//
//   - [Retry]: retry with exponential backoff for transient failures
//   - [Fetch]: GET a URL, classifying failures as retryable or not
//
// Transient failures are network errors, 5xx responses and 429 responses.
// They are wrapped in [RetryableError]; everything else fails at once:
//
//	var body []byte
//	err := httputil.Retry(ctx, 3, 250*time.Millisecond, func() error {
//	    var err error
//	    body, err = httputil.Fetch(ctx, client, url, 8<<20)
//	    return err
//	})
package httputil
