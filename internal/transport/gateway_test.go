package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetcore/fleetcore/internal/compound"
	"github.com/fleetcore/fleetcore/internal/metrics"
	"github.com/fleetcore/fleetcore/internal/ringbus"
)

func newTestGateway() *Gateway {
	return New(ringbus.New(), metrics.NewEngine(), compound.New(), nil)
}

func TestDispatchRingbusPublishAndStats(t *testing.T) {
	gw := newTestGateway()
	defer gw.Close()

	publishPayload, _ := json.Marshal(ringbusPublishRequest{Topic: "t1", Sender: "w1", Priority: 2, Payload: "hello"})
	resp := gw.Dispatch(GatewayMessage{Type: ReqRingbusPublish, Payload: publishPayload})
	if resp.Type != resultType(ReqRingbusPublish) {
		t.Fatalf("response type = %v, want %v", resp.Type, resultType(ReqRingbusPublish))
	}

	statsResp := gw.Dispatch(GatewayMessage{Type: ReqRingbusStats})
	stats, ok := statsResp.Payload.(ringbus.Stats)
	if !ok {
		t.Fatalf("unexpected payload type %T", statsResp.Payload)
	}
	if stats.TotalMessages != 1 {
		t.Fatalf("total messages = %d, want 1", stats.TotalMessages)
	}
}

func TestDispatchUnknownTypeReturnsError(t *testing.T) {
	gw := newTestGateway()
	defer gw.Close()

	resp := gw.Dispatch(GatewayMessage{Type: "bogus.request"})
	if resp.Type != RespError {
		t.Fatalf("response type = %v, want error", resp.Type)
	}
}

func TestDispatchCompoundSnapshotMalformedReturnsError(t *testing.T) {
	gw := newTestGateway()
	defer gw.Close()

	resp := gw.Dispatch(GatewayMessage{Type: ReqCompoundSnapshot, Payload: json.RawMessage(`not json`)})
	if resp.Type != RespError {
		t.Fatalf("response type = %v, want error", resp.Type)
	}
}

func TestDispatchSearchQueryWithoutIndexErrors(t *testing.T) {
	gw := newTestGateway()
	defer gw.Close()

	payload, _ := json.Marshal(searchQueryRequest{Query: "anything"})
	resp := gw.Dispatch(GatewayMessage{Type: ReqSearchQuery, Payload: payload})
	if resp.Type != RespError {
		t.Fatalf("response type = %v, want error (no index configured)", resp.Type)
	}
}

func TestGatewayIntegrationPublishRoundTrip(t *testing.T) {
	gw := newTestGateway()
	defer gw.Close()
	b := NewBroadcaster(gw, 0, 0)
	defer b.Stop()
	srv := NewServer(gw, b, nil)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	httpSrv := httptest.NewServer(mux)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(ringbusPublishRequest{Topic: "t1", Sender: "w1", Priority: 1, Payload: "ping"})
	req := GatewayMessage{Type: ReqRingbusPublish, Payload: payload}
	data, _ := json.Marshal(req)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp GatewayResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Type != resultType(ReqRingbusPublish) {
		t.Fatalf("response type = %v, want %v (raw=%s)", resp.Type, resultType(ReqRingbusPublish), raw)
	}
}
