// cmd/order-service/main.go
package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain/policy"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/interfaces"
	"orderflow/internal/zookeeper"
)

const serviceName = "order-service"

// main 是订单服务的组装根：创建并装配所有依赖，然后交给 bootstrap 启动。
func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()
	log := logger.Logger()

	tracer := otel.Tracer(serviceName)

	// 出站 HTTP 依赖
	httpClient := httpclient.NewClient(tracer, cfg.App.Endpoints)
	addressAdapter := adapter.NewAddressHTTPAdapter(httpClient)
	paymentAdapter := adapter.NewPaymentHTTPAdapter(httpClient)
	shippingAdapter := adapter.NewShippingHTTPAdapter(httpClient)

	// 持久化
	db, err := infrastructure.OpenMysql(cfg.App.MysqlDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormOrderRepository(db)

	// 跟踪状态缓存
	redisClient := redis.NewClient(cfg.App.RedisAddr)
	defer redisClient.Close()
	trackingStore, err := adapter.NewTrackingRedisAdapter(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracking store")
	}

	// 订单级分布式锁
	zkConn, err := zookeeper.Connect(cfg.App.ZookeeperAddrs, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to zookeeper")
	}
	defer zkConn.Close()
	locker := adapter.NewZkLockerAdapter(zkConn)

	// 订单事件
	eventWriter := mq.NewKafkaWriter(cfg.App.KafkaBrokers, cfg.App.Topics.OrderEvents)
	defer eventWriter.Close()
	eventProducer := adapter.NewOrderEventKafkaAdapter(eventWriter)

	// 签收策略
	rule := cfg.App.Order.SignatureRule
	if rule == "" {
		rule = policy.DefaultSignatureRule
	}
	signaturePolicy, err := policy.NewSignaturePolicy(rule)
	if err != nil {
		log.Fatal().Err(err).Str("rule", rule).Msg("failed to compile signature rule")
	}

	coordinator := application.NewCoordinator(application.Deps{
		Repo:      repo,
		Locker:    locker,
		Address:   addressAdapter,
		Payment:   paymentAdapter,
		Shipping:  shippingAdapter,
		Inventory: shippingAdapter,
		Events:    eventProducer,
		Tracking:  trackingStore,
		Signature: signaturePolicy,
		Tracer:    tracer,
	})
	defer coordinator.WaitAsync()

	// 失败/超时上报消费者
	failureReader := mq.NewKafkaReader(cfg.App.KafkaBrokers, cfg.App.Topics.FailureReports, constants.FailureConsumerGroup)
	failureConsumer := infrastructure.NewFailureConsumer(failureReader, coordinator)

	handler := interfaces.NewOrderHandler(coordinator)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8090,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Runners: []func(ctx context.Context) error{
			func(ctx context.Context) error {
				failureConsumer.Start(ctx)
				<-ctx.Done()
				failureConsumer.Stop()
				return nil
			},
		},
	})
}
