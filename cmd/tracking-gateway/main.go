// cmd/tracking-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

const serviceName = "tracking-gateway"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // 演示环境放开跨域
}

// Hub 维护活跃的 WebSocket 连接，按订单号索引，
// 把订单事件实时推给订阅该订单的客户端。
type Hub struct {
	mu      sync.RWMutex
	clients map[string][]*Client // key: orderNo
}

func newHub() *Hub {
	return &Hub{clients: make(map[string][]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.orderNo] = append(h.clients[c.orderNo], c)
	h.mu.Unlock()
	logger.Logger().Info().Str("order", c.orderNo).Msg("Tracking client connected.")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	clients := h.clients[c.orderNo]
	for i, client := range clients {
		if client == c {
			h.clients[c.orderNo] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.clients[c.orderNo]) == 0 {
		delete(h.clients, c.orderNo)
	}
	h.mu.Unlock()
	close(c.send)
	logger.Logger().Info().Str("order", c.orderNo).Msg("Tracking client disconnected.")
}

// broadcast 把一条事件推给订阅该订单的所有连接。
// 发送缓冲已满的慢客户端直接丢弃本条，不阻塞其他推送。
func (h *Hub) broadcast(orderNo string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[orderNo] {
		select {
		case client.send <- payload:
		default:
			logger.Logger().Warn().Str("order", orderNo).Msg("Client send buffer full, dropping event.")
		}
	}
}

// Client 代表一条 WebSocket 连接。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	orderNo string
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) readPump() {
	defer c.hub.unregister(c)
	c.conn.SetReadLimit(512)
	for {
		// 只消费心跳，任何读错误都视为连接结束
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	orderNo := r.URL.Query().Get("order_no")
	if orderNo == "" {
		http.Error(w, "order_no is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("WebSocket upgrade failed.")
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), orderNo: orderNo}
	hub.register(client)

	go client.writePump()
	go client.readPump()
}

// consumeEvents 消费 order-events 主题并广播到 Hub。
func consumeEvents(ctx context.Context, reader *kafka.Reader, hub *Hub) error {
	logger.Logger().Info().Str("topic", reader.Config().Topic).Msg("Tracking gateway consuming order events.")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Logger().Error().Err(err).Msg("Failed to fetch order event, retrying.")
			time.Sleep(time.Second)
			continue
		}

		var event domain.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Logger().Error().Err(err).Msg("Failed to unmarshal order event, skipping.")
		} else {
			hub.broadcast(event.OrderNo, msg.Value)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Logger().Error().Err(err).Msg("Failed to commit order event offset.")
		}
	}
}

func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	hub := newHub()
	reader := mq.NewKafkaReader(cfg.App.KafkaBrokers, cfg.App.Topics.OrderEvents, constants.TrackingConsumerGroup)
	defer reader.Close()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8095,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, w, r)
			})
		},
		Runners: []func(ctx context.Context) error{
			func(ctx context.Context) error {
				return consumeEvents(ctx, reader, hub)
			},
		},
	})
}
