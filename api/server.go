package api

import (
	"fmt"
	"net/http"

	"github.com/CrystalRanch/Payout-Backend/models"
	"github.com/CrystalRanch/Payout-Backend/providers/ledger"
	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/services/payout"
	"github.com/CrystalRanch/Payout-Backend/utils"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router *gin.Engine
	config *utils.Config
	logger *logging.Logger
	store  payout.RequestStore
	engine *payout.Engine
	ledger *ledger.LedgerProvider
}

func NewServer(
	config *utils.Config,
	logger *logging.Logger,
	store payout.RequestStore,
	engine *payout.Engine,
	ledgerProvider *ledger.LedgerProvider,
) *Server {
	g := gin.Default()

	g.Use(CORSMiddleware())
	g.Use(logger.LoggingMiddleWare())

	return &Server{
		router: g,
		config: config,
		logger: logger,
		store:  store,
		engine: engine,
		ledger: ledgerProvider,
	}
}

func (s *Server) Start() error {

	dr := models.SuccessResponse{
		Status:  "success",
		Message: "Payout processor running",
		Version: utils.REVISION,
	}

	s.router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, dr)
	})

	/// Register Object Routers Below
	Withdrawals{}.router(s)

	return s.router.Run(fmt.Sprintf(":%v", s.config.ServerPort))
}
