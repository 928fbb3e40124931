package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/abcfe/abcfe-keyring/api"
	"github.com/abcfe/abcfe-keyring/api/rest"
	"github.com/abcfe/abcfe-keyring/chain"
	"github.com/abcfe/abcfe-keyring/common/logger"
	conf "github.com/abcfe/abcfe-keyring/config"
	"github.com/abcfe/abcfe-keyring/custody"
	"github.com/abcfe/abcfe-keyring/keystore"
	"github.com/abcfe/abcfe-keyring/storage"
)

type App struct {
	stop     chan struct{}
	stopOnce sync.Once

	Conf       conf.Config
	DB         *storage.DB
	KeyStore   *keystore.KeyStore
	Chains     *chain.Registry
	Keeper     *custody.Keeper
	restServer *rest.Server
	wsHub      *api.WSHub
}

func New(configPath string) (*App, error) {
	cfg, err := conf.NewConfig(configPath)
	if err != nil {
		fmt.Println("Failed to initialized application: ", err)
		return nil, err
	}

	if err := logger.InitLogger(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return nil, err
	}

	return NewWithConfig(cfg)
}

// NewWithConfig wires the keyring from an already loaded config.
func NewWithConfig(cfg *conf.Config) (*App, error) {
	db, err := storage.InitDB(cfg)
	if err != nil {
		logger.Error("Failed to load db: ", err)
		return nil, err
	}

	chains, err := chain.NewRegistryFromConfig(cfg)
	if err != nil {
		logger.Error("Failed to load chain registry: ", err)
		_ = db.Close()
		return nil, err
	}

	ks := keystore.New(db, keystore.WithScryptParams(cfg.Keystore.ScryptN, cfg.Keystore.ScryptP))

	// 승인 요청은 웹소켓으로 프롬프트에 전달
	hub := api.NewWSHub()
	keeper := custody.New(ks, chains,
		custody.WithPromptSpawner(hub),
		custody.WithTimeouts(
			time.Duration(cfg.Approval.UnlockTimeoutSec)*time.Second,
			time.Duration(cfg.Approval.TxConfigTimeoutSec)*time.Second,
			time.Duration(cfg.Approval.SignTimeoutSec)*time.Second,
		),
	)

	status, err := keeper.Restore()
	if err != nil {
		logger.Error("Failed to restore key material: ", err)
		_ = db.Close()
		return nil, err
	}
	logger.Info("keyring status: ", status, " chains: ", chains.ChainIDs())

	app := &App{
		stop:     make(chan struct{}),
		Conf:     *cfg,
		DB:       db,
		KeyStore: ks,
		Chains:   chains,
		Keeper:   keeper,
		wsHub:    hub,
	}
	app.restServer = rest.NewServer(cfg.Server.Host, cfg.Server.RestPort, keeper, hub)

	return app, nil
}

// StartAll 모든 서비스 시작
func (p *App) StartAll() error {
	if err := p.restServer.Start(); err != nil {
		return fmt.Errorf("failed to start REST API server: %w", err)
	}

	logger.Info("All services started successfully")
	return nil
}

// Cleanup 애플리케이션 정리
func (p *App) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 종료 전에 시드를 메모리에서 제거
	if p.Keeper != nil {
		p.Keeper.Lock()
	}

	if p.restServer != nil {
		if err := p.restServer.Stop(ctx); err != nil {
			logger.Error("Error stopping REST API server:", err)
		}
	}

	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			logger.Error("Error closing DB connection:", err)
		}
	}

	logger.Info("All resources cleaned up")
}

func (p *App) Wait() {
	<-p.stop
}

func (p *App) Terminate() {
	p.stopOnce.Do(func() {
		p.Cleanup()
		close(p.stop)
	})
}

func (p *App) SigHandler() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Arrived terminate signal: ", sig)
		p.Terminate()
	}()
}
