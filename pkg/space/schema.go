package space

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several tuple spaces can coexist on a single Redis server.
//
// Key pattern: tuplebridge:{instance_name}:{entity}:{id}

// TupleKey returns the Redis key for a stored tuple record.
// Pattern: tuplebridge:{instance_name}:tuple:{tuple_id}
func TupleKey(instanceName, tupleID string) string {
	return fmt.Sprintf("tuplebridge:%s:tuple:%s", instanceName, tupleID)
}

// TuplesKey returns the Redis key for the list of tuple ids in publication order.
// Pattern: tuplebridge:{instance_name}:tuples
func TuplesKey(instanceName string) string {
	return fmt.Sprintf("tuplebridge:%s:tuples", instanceName)
}

// TupleEventsChannel returns the Pub/Sub channel name for tuple events.
// Pattern: tuplebridge:{instance_name}:tuple_events
func TupleEventsChannel(instanceName string) string {
	return fmt.Sprintf("tuplebridge:%s:tuple_events", instanceName)
}
