package ipc

import "strconv"

// Opcode identifies a message on the wire. The ordinals are stable and in
// canonical order; changing them breaks every peer.
type Opcode uint8

const (
	// Inbound requests
	OpPublish        Opcode = 0
	OpSubscribe      Opcode = 1
	OpSubscribeLocal Opcode = 2
	OpUnsubscribe    Opcode = 3

	// Outbound replies
	OpSubscriptionAssigned Opcode = 4
	OpNextValue            Opcode = 5
	OpCompleted            Opcode = 6
	OpError                Opcode = 7
)

var opcodeNames = map[Opcode]string{
	OpPublish:              "PUBLISH",
	OpSubscribe:            "SUBSCRIBE",
	OpSubscribeLocal:       "SUBSCRIBE_LOCAL",
	OpUnsubscribe:          "UNSUBSCRIBE",
	OpSubscriptionAssigned: "SUBSCRIPTION_ASSIGNED",
	OpNextValue:            "NEXT_VALUE",
	OpCompleted:            "COMPLETED",
	OpError:                "ERROR",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "OPCODE(" + strconv.Itoa(int(op)) + ")"
}

// Inbound reports whether op is a request sent to the bridge.
func (op Opcode) Inbound() bool {
	return op <= OpUnsubscribe
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}
