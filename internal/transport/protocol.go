package transport

import "encoding/json"

// MessageType names a gateway request or response frame.
type MessageType string

const (
	ReqRingbusPublish   MessageType = "ringbus.publish"
	ReqRingbusRead      MessageType = "ringbus.read"
	ReqRingbusStats     MessageType = "ringbus.stats"
	ReqMetricsObserve   MessageType = "metrics.observe"
	ReqMetricsSnapshot  MessageType = "metrics.snapshot"
	ReqDagTopoSort      MessageType = "dag.topsort"
	ReqDagCriticalPath  MessageType = "dag.criticalpath"
	ReqSwarmTallyVotes  MessageType = "swarm.tallyvotes"
	ReqSwarmRouteTasks  MessageType = "swarm.routetasks"
	ReqCompoundSnapshot MessageType = "compound.snapshot"
	ReqCompoundRates    MessageType = "compound.rates"
	ReqSearchQuery      MessageType = "search.query"

	RespSnapshot MessageType = "snapshot"
	RespError    MessageType = "error"
)

// GatewayMessage is the inbound client→server frame:
// {"type": "...", "payload": {...}}.
type GatewayMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GatewayResponse is the outbound server→client frame. A request of type
// "<t>" yields either {"type": "<t>_result", "payload": ...} or
// {"type": "error", "payload": {"message": "..."}}.
type GatewayResponse struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ErrorPayload is the payload of a RespError frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

func resultType(req MessageType) MessageType {
	return MessageType(string(req) + "_result")
}
