// The ledger is optional. When configured, the job records one Entry per
// partition after fetch and write have finished:
//
//	{prefix}:partition:{year}:{grade}  -> JSON Entry (optional TTL)
//	{prefix}:partitions                -> set of all entry keys
//
// A partition whose pagination completed with zero records has status
// "empty" and no storage object; a partition that was never processed has
// no entry at all.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	l := ledger.New(redisClient, ledger.DefaultConfig())
//
//	entry, err := l.Get(ctx, partition.Key{Year: 2020, Grade: "grade-pk"})
//	if err == ledger.ErrNotRecorded {
//		// never processed
//	}
//
// Ledger failures never fail a partition; the job logs them and moves on.
package ledger
