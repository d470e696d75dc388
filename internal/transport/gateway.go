// Package transport exposes six of the seven fleetcore engines (all but
// the logstream parser, which has no request type) to a remote caller
// over a gorilla/websocket connection. It is deliberately thin: it
// decodes a GatewayMessage, dispatches to the matching engine method on a
// single serializing goroutine, and encodes the result back. It owns no
// business logic — every invariant lives in the engine packages.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fleetcore/fleetcore/internal/compound"
	"github.com/fleetcore/fleetcore/internal/dag"
	"github.com/fleetcore/fleetcore/internal/metrics"
	"github.com/fleetcore/fleetcore/internal/ringbus"
	"github.com/fleetcore/fleetcore/internal/search"
	"github.com/fleetcore/fleetcore/internal/swarm"
)

// ErrTooManyConnections is returned by AddClient when the maximum number
// of concurrent WebSocket connections has been reached.
var ErrTooManyConnections = errors.New("too many WebSocket connections")

type dispatchRequest struct {
	msg  GatewayMessage
	resp chan dispatchResult
}

type dispatchResult struct {
	payload interface{}
	err     error
}

// Gateway owns the ringbus, metrics, compound and search engine instances
// (dag and swarm are stateless functions) and serializes every request
// to them through a single dispatch goroutine — the engines themselves
// are not internally synchronized. Code that holds the same engine
// instances and calls them directly, outside Dispatch, is not serialized
// with it.
type Gateway struct {
	Ringbus   *ringbus.Bus
	Metrics   *metrics.Engine
	Compound  *compound.Accumulator
	Search    *search.Index
	requests  chan dispatchRequest
	clock     func() int64
	broadcast *Broadcaster
	done      chan struct{}
}

// New constructs a Gateway around the given engine instances and starts
// its dispatch goroutine. search may be nil if no index was configured.
func New(bus *ringbus.Bus, met *metrics.Engine, comp *compound.Accumulator, idx *search.Index) *Gateway {
	g := &Gateway{
		Ringbus:  bus,
		Metrics:  met,
		Compound: comp,
		Search:   idx,
		requests: make(chan dispatchRequest, 256),
		clock:    func() int64 { return time.Now().UnixMilli() },
		done:     make(chan struct{}),
	}
	go g.dispatchLoop()
	return g
}

// Close stops the dispatch goroutine.
func (g *Gateway) Close() {
	close(g.done)
}

func (g *Gateway) dispatchLoop() {
	for {
		select {
		case req := <-g.requests:
			payload, err := g.handle(req.msg)
			req.resp <- dispatchResult{payload: payload, err: err}
		case <-g.done:
			return
		}
	}
}

// Dispatch sends msg to the serializing goroutine and blocks for its
// response, returning it as a GatewayResponse (not yet JSON-encoded).
func (g *Gateway) Dispatch(msg GatewayMessage) GatewayResponse {
	resp := make(chan dispatchResult, 1)
	g.requests <- dispatchRequest{msg: msg, resp: resp}
	result := <-resp

	if result.err != nil {
		return GatewayResponse{Type: RespError, Payload: ErrorPayload{Message: result.err.Error()}}
	}
	return GatewayResponse{Type: resultType(msg.Type), Payload: result.payload}
}

func (g *Gateway) handle(msg GatewayMessage) (interface{}, error) {
	switch msg.Type {
	case ReqRingbusPublish:
		return g.handleRingbusPublish(msg.Payload)
	case ReqRingbusRead:
		return g.handleRingbusRead(msg.Payload)
	case ReqRingbusStats:
		return g.Ringbus.Stats(), nil
	case ReqMetricsObserve:
		return g.handleMetricsObserve(msg.Payload)
	case ReqMetricsSnapshot:
		return g.Metrics.GetSnapshot(g.clock()), nil
	case ReqDagTopoSort:
		return g.handleDagTopoSort(msg.Payload)
	case ReqDagCriticalPath:
		return g.handleDagCriticalPath(msg.Payload)
	case ReqSwarmTallyVotes:
		return g.handleSwarmTallyVotes(msg.Payload)
	case ReqSwarmRouteTasks:
		return g.handleSwarmRouteTasks(msg.Payload)
	case ReqCompoundSnapshot:
		return g.handleCompoundSnapshot(msg.Payload)
	case ReqCompoundRates:
		return g.handleCompoundRates()
	case ReqSearchQuery:
		return g.handleSearchQuery(msg.Payload)
	default:
		return nil, fmt.Errorf("unknown request type %q", msg.Type)
	}
}

type ringbusPublishRequest struct {
	Topic    string `json:"topic"`
	Sender   string `json:"sender"`
	Priority int    `json:"priority"`
	Payload  string `json:"payload"`
}

func (g *Gateway) handleRingbusPublish(raw json.RawMessage) (interface{}, error) {
	var req ringbusPublishRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode ringbus.publish: %w", err)
	}
	id := g.Ringbus.Publish(req.Topic, req.Sender, req.Priority, req.Payload)
	return map[string]string{"id": id}, nil
}

type ringbusReadRequest struct {
	Topic      string `json:"topic"`
	Handle     string `json:"handle"`
	Limit      int    `json:"limit"`
	UnreadOnly bool   `json:"unreadOnly"`
}

func (g *Gateway) handleRingbusRead(raw json.RawMessage) (interface{}, error) {
	var req ringbusReadRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode ringbus.read: %w", err)
	}
	if req.Topic != "" {
		return g.Ringbus.ReadTopic(req.Topic, req.Limit), nil
	}
	return g.Ringbus.Read(req.Handle, req.Limit, req.UnreadOnly), nil
}

type metricsObserveRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func (g *Gateway) handleMetricsObserve(raw json.RawMessage) (interface{}, error) {
	var req metricsObserveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode metrics.observe: %w", err)
	}
	g.Metrics.Observe(req.Name, req.Value)
	return map[string]bool{"ok": true}, nil
}

type dagNodesRequest struct {
	Nodes []dag.Node `json:"nodes"`
}

func (g *Gateway) handleDagTopoSort(raw json.RawMessage) (interface{}, error) {
	var req dagNodesRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode dag.topsort: %w", err)
	}
	return dag.TopologicalSort(req.Nodes), nil
}

func (g *Gateway) handleDagCriticalPath(raw json.RawMessage) (interface{}, error) {
	var req dagNodesRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode dag.criticalpath: %w", err)
	}
	return dag.CriticalPath(req.Nodes)
}

type swarmTallyRequest struct {
	Votes       []swarm.Vote `json:"votes"`
	Options     []string     `json:"options"`
	Method      string       `json:"method"`
	QuorumValue float64      `json:"quorumValue"`
}

func (g *Gateway) handleSwarmTallyVotes(raw json.RawMessage) (interface{}, error) {
	var req swarmTallyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode swarm.tallyvotes: %w", err)
	}
	return swarm.TallyVotes(req.Votes, req.Options, req.Method, req.QuorumValue), nil
}

type swarmRouteRequest struct {
	Tasks   []string           `json:"tasks"`
	Workers []string           `json:"workers"`
	Trails  map[string]float64 `json:"trails"`
	Alpha   float64            `json:"alpha"`
}

func (g *Gateway) handleSwarmRouteTasks(raw json.RawMessage) (interface{}, error) {
	var req swarmRouteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode swarm.routetasks: %w", err)
	}
	return swarm.RouteTasks(req.Tasks, req.Workers, req.Trails, req.Alpha), nil
}

func (g *Gateway) handleCompoundSnapshot(raw json.RawMessage) (interface{}, error) {
	if err := g.Compound.PushSnapshot(raw); err != nil {
		return nil, fmt.Errorf("compound.snapshot: %w", err)
	}
	return map[string]int{"pointCount": g.Compound.GetPointCount()}, nil
}

func (g *Gateway) handleCompoundRates() (interface{}, error) {
	return map[string]float64{
		"compoundRate":      g.Compound.GetCompoundRate(),
		"knowledgeVelocity": g.Compound.GetKnowledgeVelocity(),
		"creditsVelocity":   g.Compound.GetCreditsVelocity(),
	}, nil
}

type searchQueryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (g *Gateway) handleSearchQuery(raw json.RawMessage) (interface{}, error) {
	if g.Search == nil {
		return nil, fmt.Errorf("search index not configured")
	}
	var req searchQueryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode search.query: %w", err)
	}
	return g.Search.Search(req.Query, req.Limit)
}

// SetBroadcaster records b on the gateway and logs it. The gateway does
// not use it itself: periodic snapshots are pushed by the Broadcaster's
// own ticker. Not required.
func (g *Gateway) SetBroadcaster(b *Broadcaster) {
	g.broadcast = b
	log.Printf("transport: broadcaster attached")
}
