package shardtypes

import "errors"

// ErrShardArithmetic is returned when a split or merge is attempted on
// a shard for which the operation is not defined (max depth, or the
// full unsplit shard for Merge).
var ErrShardArithmetic = errors.New("shardtypes: invalid shard split/merge arithmetic")
