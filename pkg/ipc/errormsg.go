package ipc

// ErrorMessage builds the reply reporting that req failed. The payload is
// the failed request's opcode followed by the error text, so a client can
// route failures of requests that carry no subscription id.
func ErrorMessage(req Message, text string) Message {
	payload := make([]byte, 0, 1+len(text))
	payload = append(payload, byte(req.Op))
	payload = append(payload, text...)
	return Message{Op: OpError, SubscriptionID: req.SubscriptionID, Payload: payload}
}

// ErrorDetails splits an Error message payload into the failed request's
// opcode and the error text. ok is false for other messages.
func (m Message) ErrorDetails() (failed Opcode, text string, ok bool) {
	if m.Op != OpError || len(m.Payload) == 0 {
		return 0, "", false
	}
	return Opcode(m.Payload[0]), string(m.Payload[1:]), true
}
