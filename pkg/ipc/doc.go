// Package ipc is the transport across the tuplebridge process boundary.
//
// Requests and replies are Messages: an Opcode, an optional subscription id,
// the reply target and an opaque payload. Messages travel as single binary
// frames (see Message.MarshalBinary) so any byte-oriented conduit can carry
// them.
//
// Two transports are provided:
//
//   - Local: in-process mailboxes, for embedding and tests.
//   - Redis: one Pub/Sub channel per target, namespaced by instance name.
//     Pattern: tuplebridge:{instance_name}:inbox:{target}
//
// The bridge listens on RequestTarget. Each client listens on its own reply
// target and names it in the ReplyTo field of its requests.
package ipc
