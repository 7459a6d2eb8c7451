package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grantflow-labs/grantflow-backend/internal/approval"
	"github.com/grantflow-labs/grantflow-backend/internal/discovery"
	"github.com/grantflow-labs/grantflow-backend/internal/multisig"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/firebase"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/pubsub"
	wshub "github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
	"github.com/grantflow-labs/grantflow-backend/internal/walletbridge"
	"github.com/grantflow-labs/grantflow-backend/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	setupViper()
	setupZerolog()
	pubsub.InitPubSub()
	db := setupDb()
	chainClient := setupChainClient()
	apiRouter := setupApiRouter(db, chainClient)

	defer func() { pubsub.CloseClient() }()
	defer func() { chainClient.Close() }()

	firebase.InitFirebaseSdk()

	port := viper.Get("PORT").(string)
	server := &http.Server{
		Addr:         port,
		Handler:      apiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	server.ListenAndServe()
}

func setupDb() *gorm.DB {
	dbUrl := viper.Get("DB_URL").(string)

	db, err := gorm.Open(postgres.Open(dbUrl), &gorm.Config{})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sqlDb, _ := db.DB()

	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	return db
}

func setupChainClient() *chain.RPCClient {
	endpoints := viper.GetStringMapString("CHAIN_GATEWAY_ENDPOINTS")
	if len(endpoints) == 0 {
		log.Fatal().Msg("No chain gateway endpoints configured")
	}
	return chain.NewRPCClient(endpoints)
}

func setupExecutorSigner() chain.Signer {
	keyResourceName := viper.GetString("EXECUTOR_KMS_KEY")
	if keyResourceName == "" {
		return nil
	}
	executorAddress := viper.Get("EXECUTOR_ADDRESS").(string)

	signer, err := chain.NewKMSSigner(context.Background(), keyResourceName, executorAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize executor signer")
	}
	return signer
}

func setupApiRouter(db *gorm.DB, chainClient chain.Client) *gin.Engine {
	apiRouter := gin.Default()
	routerGroup := apiRouter.Group("/grantflow-api")

	middleware.RegisterGlobalMiddleware(apiRouter)

	hub := wshub.NewNotificationHub()
	signatureTimeout := viper.GetDuration("WALLET_SIGNATURE_TIMEOUT")
	if signatureTimeout == 0 {
		signatureTimeout = 2 * time.Minute
	}
	bridge := walletbridge.NewBridge(hub, signatureTimeout)
	executor := setupExecutorSigner()

	ws.RegisterRoutes(routerGroup)
	multisig.RegisterRoutes(routerGroup, db)
	discovery.RegisterRoutes(routerGroup, chainClient)
	approval.RegisterRoutesAndSubscriptions(routerGroup, db, chainClient, bridge, executor, hub)
	walletbridge.RegisterRoutes(routerGroup, bridge)

	return apiRouter
}

func setupViper() {
	viper.AutomaticEnv()
	viper.SetConfigFile("./.env")
}

func setupZerolog() {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
