package api

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/fespa/contest-api/docs"
	v1 "github.com/fespa/contest-api/internal/api/handler/v1"
	"github.com/fespa/contest-api/internal/api/middleware"
	"github.com/fespa/contest-api/internal/config"
	"github.com/fespa/contest-api/internal/gateway/fedapay"
	"github.com/fespa/contest-api/internal/repository"
	"github.com/fespa/contest-api/internal/repository/dao"
	"github.com/fespa/contest-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	voteSvc := s.initVoteService(db)
	paymentSvc, gatewayClient := s.initPaymentService(db, voteSvc)

	voteHandler := v1.NewVoteHandler(voteSvc)
	paymentHandler := v1.NewPaymentHandler(paymentSvc, conf.Voting)
	webhookHandler := v1.NewWebhookHandler(paymentSvc, gatewayClient)
	settingHandler := v1.NewSettingHandler(voteSvc, paymentSvc)
	s.MountHandlers(voteHandler, paymentHandler, webhookHandler, settingHandler)

	return s
}

func (s *Server) initVoteService(db *gorm.DB) *service.VoteService {
	voteRepo := repository.NewVoteRepository(dao.NewVoteDAO(db))
	settingRepo := repository.NewVoteSettingRepository(dao.NewVoteSettingDAO(db))
	candRepo := repository.NewCandidacyRepository(dao.NewCandidacyDAO(db))

	return service.NewVoteService(voteRepo, settingRepo, candRepo)
}

func (s *Server) initPaymentService(db *gorm.DB, policy *service.VoteService) (*service.PaymentService, *fedapay.Client) {
	paymentRepo := repository.NewPaymentRepository(dao.NewPaymentDAO(db))
	eventRepo := repository.NewGatewayEventRepository(dao.NewGatewayEventDAO(db))
	gatewayClient := fedapay.NewClient(s.Config.FedaPay, s.Config.API.Environment)

	expiry := time.Duration(s.Config.Voting.PaymentExpiryMinutes) * time.Minute
	svc := service.NewPaymentService(paymentRepo, eventRepo, gatewayClient, policy, s.Config.Voting.Currency, expiry)

	return svc, gatewayClient
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(voteHandler *v1.VoteHandler, paymentHandler *v1.PaymentHandler, webhookHandler *v1.WebhookHandler, settingHandler *v1.SettingHandler) {
	const basePath = "/api/v1"

	authenticator := middleware.NewAuthenticator(s.Config.API.JWTSigningKey)

	public := s.Router.Group(basePath)
	{
		public.GET("/candidacies/:candidacyID", voteHandler.HandleGetCandidacy)
		public.GET("/editions/:editionID/leaderboard", voteHandler.HandleLeaderboard)

		public.POST("/payments", paymentHandler.HandleInitiatePayment)
		public.GET("/payments/:token", paymentHandler.HandleGetPayment)
		public.POST("/payments/:token/resubmit", paymentHandler.HandleResubmitPayment)
		public.POST("/payments/:token/cancel", paymentHandler.HandleCancelPayment)
		public.GET("/payments/:token/callback", paymentHandler.HandleRedirectCallback)

		public.POST("/webhooks/fedapay", webhookHandler.HandleFedaPayWebhook)
	}

	votes := s.Router.Group(basePath, authenticator.VerifyJWT())
	{
		votes.POST("/votes", voteHandler.HandleCastVotes)
	}

	admin := s.Router.Group(basePath, authenticator.VerifyJWT(), authenticator.RequireAdmin())
	{
		admin.PUT("/editions/:editionID/settings", settingHandler.HandleUpsertVoteSetting)
		admin.GET("/gateway-events", settingHandler.HandleListGatewayEvents)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Contest Voting API"
	docs.SwaggerInfo.Description = "Talent contest voting platform with paid and free vote paths."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
