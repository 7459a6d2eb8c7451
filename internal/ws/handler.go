package ws

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	pkgws "github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

type wsHandler struct {
	notificationHub *pkgws.NotificationHub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func RegisterRoutes(rg *gin.RouterGroup) {
	handler := wsHandler{
		notificationHub: pkgws.NewNotificationHub(),
	}

	routes := rg.Group("/ws")
	routes.GET("/approvals/:milestoneId", middleware.VerifyAuthToken, handler.serveApprovalSocket)
	routes.GET("/signers/:address", middleware.VerifyAuthToken, handler.serveSignerSocket)
}

func (wsh *wsHandler) serveApprovalSocket(c *gin.Context) {
	wsh.serve(c, fmt.Sprintf("approvals/%s", c.Param("milestoneId")))
}

func (wsh *wsHandler) serveSignerSocket(c *gin.Context) {
	wsh.serve(c, fmt.Sprintf("signers/%s", c.Param("address")))
}

func (wsh *wsHandler) serve(c *gin.Context, topic string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot upgrade ws connection")
		return
	}
	defer wsh.notificationHub.UnregisterListener(topic, conn)

	wsh.notificationHub.RegisterListener(topic, conn)

	for {
		var buffer any
		err := conn.ReadJSON(&buffer)
		if err != nil {
			log.Warn().Err(err).Msg("Error reading ws message")
			return
		}
	}
}
