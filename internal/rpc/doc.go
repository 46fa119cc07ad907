// Package rpc contains the wire messages and gRPC service bindings exchanged between the ranks
// of a worker group. Messages use the protobuf wire format described by
// ../rpc_proto/disttable.proto, encoded with protowire and carried by a gRPC codec registered
// under the "disttable" content-subtype.
package rpc
