package observer

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"citytraffic/internal/protocol"
)

const (
	Path = "/v1/observer/ws"

	handshakeTimeout = 5 * time.Second
	idleTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

type Server struct {
	hub *Hub
	log *zap.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool

	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(Path, s.WSHandler())
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		hs := s.hub.subscribe(sub.OnlyWorthIt)
		defer s.hub.unsubscribe(hs)
		log := s.log.With(zap.Uint64("subscriber", hs.id))
		log.Debug("observer subscribed", zap.Bool("only_worth_it", sub.OnlyWorthIt))

		var (
			wg   sync.WaitGroup
			stop = make(chan struct{})
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				case <-hs.gone:
					closeWith(conn, websocket.CloseTryAgainLater, "slow consumer")
					_ = conn.Close()
					return
				case b := <-hs.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop: later SUBSCRIBE messages update the filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				hs.onlyWorthIt.Store(sub.OnlyWorthIt)
			}
		}

		close(stop)
		wg.Wait()
		log.Debug("observer left")
	}
}

func parseSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := protocol.ValidateJSON(protocol.SchemaSubscribe, msg); err != nil {
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.ProtocolVersion == protocol.Version
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
