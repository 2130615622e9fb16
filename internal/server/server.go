package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jaswinder6991/dao-agent-next/internal/dao"
	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
	"github.com/jaswinder6991/dao-agent-next/internal/pikespeak"
	"github.com/jaswinder6991/dao-agent-next/internal/refswap"
)

type Config struct {
	Port       string `envconfig:"SERVER_PORT" default:"8080"`
	PathPrefix string `envconfig:"SERVER_PATH_PREFIX" default:"/api"`

	// FallbackAccount is the placeholder identity for anonymous browsing.
	FallbackAccount string `envconfig:"FALLBACK_ACCOUNT" default:"near"`

	USDTTokenID string `envconfig:"USDT_TOKEN_ID" default:"usdt.tether-token.near"`
	USDCTokenID string `envconfig:"USDC_TOKEN_ID" default:"17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1"`
	WrapNearID  string `envconfig:"WRAP_NEAR_ID" default:"wrap.near"`

	DefaultProposalCount int `envconfig:"DEFAULT_PROPOSAL_COUNT" default:"50"`
}

// Server exposes one GET route per supported operation. No authentication
// and no rate limiting: trust is delegated to the identity header's producer
// and to on-chain signature verification at broadcast time.
type Server struct {
	cfg       Config
	echo      *echo.Echo
	logger    *logrus.Logger
	indexer   *pikespeak.Client
	builder   *dao.Builder
	planner   *refswap.Planner
	assembler *neartx.Assembler
}

// DefaultMiddlewares returns the middleware stack every deployment carries.
func DefaultMiddlewares() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.Recover(),
		middleware.RequestID(),
		middleware.CORS(),
	}
}

func NewServer(
	cfg Config,
	indexer *pikespeak.Client,
	builder *dao.Builder,
	planner *refswap.Planner,
	assembler *neartx.Assembler,
	middlewares []echo.MiddlewareFunc,
	logger *logrus.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	for _, m := range middlewares {
		e.Use(m)
	}

	s := &Server{
		cfg:       cfg,
		echo:      e,
		logger:    logger,
		indexer:   indexer,
		builder:   builder,
		planner:   planner,
		assembler: assembler,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	g := s.echo.Group(s.cfg.PathPrefix)

	g.GET("/transfer/near/:dao/:receiver/:quantity", s.transferNear)
	g.GET("/transfer/usdt/:dao/:receiver/:quantity", s.transferUSDT)
	g.GET("/transfer/usdc/:dao/:receiver/:quantity", s.transferUSDC)

	g.GET("/daos", s.memberDAOs)
	g.GET("/daos/:account", s.memberDAOs)

	g.GET("/proposals/user", s.userProposals)
	g.GET("/proposals/vote", s.votableProposals)
	g.GET("/proposals/vote/:account", s.votableProposals)
	g.GET("/proposals/:dao", s.daoProposals)

	g.GET("/proposal/addMember/:dao/:memberAccount/:role", s.addMember)
	g.GET("/proposal/removeMember/:dao/:memberAccount/:role", s.removeMember)
	g.GET("/proposal/swap/near/:dao/:tokenOutId/:sendAmount", s.swapFromNear)
	g.GET("/proposal/:dao/:proposalId", s.proposalDetail)

	g.GET("/vote/:dao/:proposalId/:action", s.vote)

	g.GET("/alldaos", s.allDAOs)
	g.GET("/dao/match/:keyword", s.matchDAOs)
	g.GET("/dao/:daoId", s.daoPolicy)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(":" + s.cfg.Port)
	}()

	s.logger.Infof("server listening on :%s", s.cfg.Port)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: failed to serve: %w", err)
	case <-ctx.Done():
		if err := s.echo.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("server: failed to shut down: %w", err)
		}
		return nil
	}
}
