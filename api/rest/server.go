package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/abcfe/abcfe-keyring/api"
	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/custody"
)

// Server REST API 서버 구조체
type Server struct {
	host       string
	port       int
	httpServer *http.Server
	keeper     *custody.Keeper
	wsHub      *api.WSHub
}

// NewServer API 서버 인스턴스 생성. wsHub 는 keeper 의 prompt spawner 로도 쓰인다.
func NewServer(host string, port int, keeper *custody.Keeper, wsHub *api.WSHub) *Server {
	if wsHub == nil {
		wsHub = api.NewWSHub()
	}
	wsHub.SetPendingProvider(keeper.PendingApprovals)
	return &Server{
		host:   host,
		port:   port,
		keeper: keeper,
		wsHub:  wsHub,
	}
}

// Handler returns the routed handler without starting a listener
func (s *Server) Handler() http.Handler {
	return setupRouter(s.keeper, s.wsHub)
}

// Start API 서버 시작
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// WebSocket Hub 시작
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// bridge 요청은 승인/만료까지 응답을 보류하므로 WriteTimeout 을 두지 않음
		IdleTimeout: 120 * time.Second,
	}

	logger.Info("REST API Server starting on ", addr)
	logger.Info("WebSocket available at ws://", addr, "/ws")
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("REST API Server error:", err)
		}
	}()

	return nil
}

// Stop API 서버 종료
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("Shutting down REST API Server...")
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// GetWSHub WebSocket Hub 반환
func (s *Server) GetWSHub() *api.WSHub {
	return s.wsHub
}
