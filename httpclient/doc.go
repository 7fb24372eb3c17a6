// Package httpclient is the resilient REST client for the remote movie catalog API.
//
// Every call resolves its path against a fixed base URL, injects the configured
// credential, and runs under a per-attempt timeout. Failures are classified into
// a closed set of kinds (see Kind) and retried with capped exponential backoff
// when the kind allows it. A 429 Retry-After hint replaces the computed delay for
// that retry.
//
// Aggregate metrics are updated once per logical call and can be read with
// Client.Metrics. The same figures are exported as OpenTelemetry instruments.
//
//	c, err := httpclient.NewBuilder(log).
//		WithAPIKey(key).
//		WithRetries(3, time.Second).
//		Build()
//	if err != nil {
//		return err
//	}
//	page, err := httpclient.GetJSON[MoviePage](ctx, c, &httpclient.Request{Path: "/movie/popular"})
package httpclient
