package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/WelcomerTeam/Presence-Kit/presencejson"
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// BaseResponse is the envelope of every HTTP response.
type BaseResponse struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

type CardStatusResponse struct {
	UserID string     `json:"user_id"`
	Status CardStatus `json:"status"`
}

// Server exposes a card over HTTP.
type Server struct {
	logger *slog.Logger

	card *Card

	// ctx is the parent of subscriptions started by requests. Request
	// contexts are recycled by fasthttp once the handler returns.
	ctx context.Context

	router *router.Router
	server *fasthttp.Server
}

func NewServer(ctx context.Context, logger *slog.Logger, card *Card, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	server := &Server{
		logger: logger,
		card:   card,
		ctx:    ctx,
		router: router.New(),
	}

	server.router.GET("/v1/card", server.handleCard)
	server.router.GET("/v1/card/view", server.handleView)
	server.router.GET("/v1/card/status", server.handleStatus)
	server.router.POST("/v1/card/user/{id}", server.handleSwitchUser)
	server.router.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	))

	server.server = &fasthttp.Server{
		Handler:      server.HandleRequest,
		Name:         "PresenceKit",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server
}

// HandleRequest routes a request and logs its outcome.
func (server *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	start := time.Now()

	defer func() {
		server.logger.Debug("Handled request",
			"remote_addr", ctx.RemoteAddr().String(),
			"method", gotils_strconv.B2S(ctx.Method()),
			"path", gotils_strconv.B2S(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"duration", time.Since(start),
		)
	}()

	server.router.Handler(ctx)
}

func (server *Server) ListenAndServe(address string) error {
	server.logger.Info("Starting HTTP server", "host", address)

	err := server.server.ListenAndServe(address)
	if err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func (server *Server) Serve(listener net.Listener) error {
	err := server.server.Serve(listener)
	if err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func (server *Server) Shutdown(ctx context.Context) error {
	server.logger.Info("Stopping HTTP server")

	return server.server.ShutdownWithContext(ctx)
}

func (server *Server) handleCard(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, BaseResponse{
		Success: true,
		Data:    server.card.Frame(),
	})
}

func (server *Server) handleView(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, BaseResponse{
		Success: true,
		Data:    server.card.View(),
	})
}

func (server *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, BaseResponse{
		Success: true,
		Data: CardStatusResponse{
			UserID: server.card.UserID(),
			Status: server.card.CardStatus(),
		},
	})
}

func (server *Server) handleSwitchUser(ctx *fasthttp.RequestCtx) {
	userID, _ := ctx.UserValue("id").(string)

	err := server.card.SwitchUser(server.ctx, userID)
	if err != nil {
		server.logger.Warn("Failed to switch user", "user_id", userID, "error", err)

		writeJSON(ctx, statusCodeForError(err), BaseResponse{
			Success: false,
			Error:   err.Error(),
		})

		return
	}

	writeJSON(ctx, fasthttp.StatusOK, BaseResponse{
		Success: true,
		Data:    server.card.Frame(),
	})
}

func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, ErrMissingUserID):
		return fasthttp.StatusBadRequest
	case errors.Is(err, ErrUserNotMonitored):
		return fasthttp.StatusNotFound
	case errors.Is(err, ErrCardStopped):
		return fasthttp.StatusConflict
	default:
		return fasthttp.StatusBadGateway
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, statusCode int, response BaseResponse) {
	ctx.SetContentType("application/json;charset=UTF-8")
	ctx.SetStatusCode(statusCode)

	err := presencejson.MarshalToWriter(ctx, response)
	if err != nil {
		ctx.ResetBody()
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success":false,"error":"failed to marshal response"}`)
	}
}
