// Package catalog provides typed operations over the movie catalog API.
//
// A Service validates inputs before any network traffic, applies the default
// language, region and page, and optionally caches successful payloads:
//
//	client, err := httpclient.NewBuilder(log).WithAPIKey(key).Build()
//	if err != nil {
//	    return err
//	}
//	svc := catalog.NewService(client, log, catalog.WithCache(memCache))
//	page, err := svc.PopularMovies(ctx, catalog.ListOptions{Page: 2})
package catalog
