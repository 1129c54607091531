// Package pagination follows the Education Data API's cursor pagination for
// one partition and accumulates every record in arrival order.
//
// Each API page carries a "results" array and a "next" URL (null on the last
// page). The paginator requests the partition's first-page URL and then
// follows exactly the server-supplied "next" values; it never builds page
// URLs on its own.
//
// Example usage:
//
//	p := pagination.NewPaginator(apiClient, pagination.DefaultConfig())
//	result, err := p.FetchAll(ctx, partition.Key{Year: 2020, Grade: "grade-pk"})
//	if err != nil {
//		// result.Records still holds everything fetched before the failure
//	}
//
// The paginator:
//   - Stops at the first transport, HTTP, or malformed-page failure (no retry)
//   - Returns the records accumulated before the failure alongside the error
//   - Fails closed after Config.MaxPages pages or on a repeated cursor
package pagination
