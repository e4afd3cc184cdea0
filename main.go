package main

import (
	"TransitChat/global"
	"TransitChat/logger"
	"TransitChat/module/chat/message"
	"TransitChat/module/notify"
	"TransitChat/service/chat"
	"TransitChat/service/mgo"
	"TransitChat/service/natsx"
	"TransitChat/service/storage"
	redisstore "TransitChat/service/storage/redis"
	"TransitChat/tools/ids"
	"TransitChat/tools/security"
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := global.Load()
	ids.SetNodeID(snowflakeNode(cfg.NodeID))

	if err := redisstore.InitRedis(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Errorf("redis init: %v", err)
		os.Exit(1)
	}
	defer func() { _ = redisstore.CloseRedis() }()

	ctx := context.Background()
	if err := mgo.Init(ctx, mgo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB}); err != nil {
		logger.Errorf("mongo init: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mgo.Close(context.Background()) }()

	presence := storage.NewRedisPresence(redisstore.GetRedis())
	msgStore := message.NewStore(mgo.GetDB())
	notifStore := notify.NewStore(mgo.GetDB())
	sender := message.NewSendUseCase(msgStore, msgStore, presence)
	verifier := security.NewVerifier(security.DefaultOptions([]byte(cfg.JWTSecret)))

	var relay *natsx.Relay
	if cfg.NatsURL != "" {
		r, err := natsx.New(natsx.Config{
			Servers: []string{cfg.NatsURL},
			Name:    "transit-chat-" + cfg.NodeID,
		}, cfg.NodeID)
		if err != nil {
			logger.Errorf("nats connect: %v", err)
			os.Exit(1)
		}
		relay = r
		defer func() { _ = relay.Close() }()
	}

	deps := chat.Deps{
		Presence: presence,
		Convs:    msgStore,
		Msgs:     msgStore,
		Notifs:   notifStore,
		Sender:   sender,
		Verifier: verifier,
	}
	if relay != nil {
		deps.Relay = relay
	}

	srv := chat.NewServer(chat.ServerConf{
		TypingTTL:     cfg.TypingTTL,
		ConnTTL:       cfg.ConnTTL,
		SweepEvery:    cfg.SweepEvery,
		SendQueueSize: cfg.SendQueueSize,
	}, deps)
	defer srv.Close()

	if relay != nil {
		if err := relay.Start(srv.DeliverLocal); err != nil {
			logger.Errorf("relay start: %v", err)
			os.Exit(1)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mgo.Ping(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": err.Error()})
			return
		}
		if err := redisstore.GetRedis().Ping(hctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeID})
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Infof("gateway %s listening on %s", cfg.NodeID, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http serve: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
}

// snowflakeNode maps the configured node name onto the snowflake node
// id space.
func snowflakeNode(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32() % 1024)
}
