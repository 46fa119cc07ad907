// Package disttable contains the core components of disttable, a point table partitioned across
// a group of cooperating processes. Each rank owns one partition of fixed-dimension points,
// learns the size of every other partition when it joins, and can read any point in the group
// on demand. Tree-based algorithms index the local partition with IndexData and traverse the
// resulting tree, fetching remote points through Get as they go.
//
// Ranks talk to each other through a types.Communicator: the local package connects ranks
// within one process, and the cluster package connects processes over gRPC.
package disttable
