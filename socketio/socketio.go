package socketio

import (
	"context"
	"fmt"
	"time"

	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// Room naming lives here so producers and the session manager agree on
// addressing: user:<id> for direct pushes, chat:<id> for member broadcast.
func UserRoom(userID uint) socket.Room {
	return socket.Room(fmt.Sprintf("user:%d", userID))
}

func ChatRoom(chatID uint) socket.Room {
	return socket.Room(fmt.Sprintf("chat:%d", chatID))
}

// Gateway wraps the socket.io server. The redis adapter lets every gateway
// instance emit to rooms whose members are connected elsewhere.
type Gateway struct {
	server *socket.Server
	log    *zap.Logger
}

func Init(app *fiber.App, rdb *redis.Client, log *zap.Logger) *Gateway {
	options := socket.DefaultServerOptions()
	options.SetServeClient(true)
	options.SetAllowEIO3(true)
	options.SetPingInterval(25 * time.Second)
	options.SetPingTimeout(20 * time.Second)
	options.SetConnectTimeout(10 * time.Second)
	options.SetAdapter(&adapter.RedisAdapterBuilder{
		Redis: r_type.NewRedisClient(context.Background(), rdb),
		Opts:  &adapter.RedisAdapterOptions{},
	})

	server := socket.NewServer(nil, nil)

	// Handshake auth: a missing or invalid bearer credential terminates the
	// connection before any event is exchanged.
	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		token, ok := client.Conn().Request().Query().Get("token")
		if !ok {
			next(socket.NewExtendedError("unauthorized", nil))
			return
		}

		claims, err := utils.CheckAndExtractTokenMetadata(token, "JWT_ACCESS_KEY")
		if err != nil || claims.Otp {
			next(socket.NewExtendedError("unauthorized", nil))
			return
		}

		client.Join(UserRoom(claims.UserID()))
		client.SetData(claims)
		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))

	return &Gateway{server: server, log: log}
}

func (g *Gateway) Server() *socket.Server {
	return g.server
}

func (g *Gateway) Emit(room socket.Room, event string, message any) {
	g.server.To(room).Emit(event, message)
}

func (g *Gateway) EmitToUser(userID uint, event string, message any) {
	g.Emit(UserRoom(userID), event, message)
}

func (g *Gateway) EmitToChat(chatID uint, event string, message any) {
	g.Emit(ChatRoom(chatID), event, message)
}

func (g *Gateway) Close() {
	g.server.Close(nil)
}
