// Package space is a tuple space stored in Redis.
//
// Tuples are published into the space and read back by subscriptions that
// name a criteria tuple: a subscription sees every tuple carrying all of
// the criteria's fields with equal values. A subscription first replays the
// tuples already stored, then follows new publications live.
//
// # Scope
//
// Every Space handle has an origin id. Global subscriptions see all tuples
// of the instance; Local subscriptions see only tuples published through the
// same handle.
//
// # Redis Schema
//
// Tuples: tuplebridge:{instance_name}:tuple:{tuple_id} (hash: origin, data, published_at_ms)
// History: tuplebridge:{instance_name}:tuples (list of tuple ids)
// Events: tuplebridge:{instance_name}:tuple_events (Pub/Sub, value-encoded)
//
// The data field and the events use the value wire format, so any client
// of the codec can read them.
package space
