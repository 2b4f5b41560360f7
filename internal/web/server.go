package web

import (
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/config"
	"github.com/redgrape/thegrid/internal/database"
	"github.com/redgrape/thegrid/internal/events"
	"github.com/redgrape/thegrid/internal/orchestrator"
	"github.com/redgrape/thegrid/internal/storyblok"
)

type server struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DataBase
	bus          *events.Bus
	cms          *storyblok.Client
	orchestrator *orchestrator.Orchestrator
}

func newServer(
	config *config.Config,
	logger *zap.Logger,
	db *database.DataBase,
	bus *events.Bus,
	cms *storyblok.Client,
	orchestrator *orchestrator.Orchestrator,
) *server {
	return &server{
		config:       config,
		logger:       logger,
		db:           db,
		bus:          bus,
		cms:          cms,
		orchestrator: orchestrator,
	}
}

func (s *server) run() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))

	setupApiService(s, r)

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong "+fmt.Sprint(time.Now().Unix()))
	})

	s.logger.Info("Starting server", zap.String("bind_address", s.config.Server.ListenAddress))
	return r.Run(s.config.Server.ListenAddress)
}
