/**
 * @description
 * This file contains the Gin HTTP handler for upgrading a standard HTTP connection
 * to a WebSocket connection. Each connection is bound to the authenticated wallet
 * and receives that wallet's sponsorship events.
 *
 * @dependencies
 * - github.com/gin-gonic/gin: The web framework.
 * - github.com/gorilla/websocket: The WebSocket library.
 */
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/poly-pro/gas-station/internal/auth"
	"github.com/poly-pro/gas-station/internal/websocket"
	"go.uber.org/zap"
)

// serveWs handles websocket requests from the peer.
func (server *Server) serveWs(c *gin.Context) {
	address, ok := auth.WalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Wallet address not found in request context"})
		return
	}

	upgrader := gorillaWS.Upgrader{
		CheckOrigin:     server.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		server.logger.Warn("failed to upgrade connection to websocket", zap.Error(err))
		return
	}

	client := &websocket.Client{
		Hub:     server.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Address: address,
		Logger:  server.logger,
	}
	server.hub.Register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

func (server *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range server.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
