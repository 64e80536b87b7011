// cmd/fulfillment-service/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/pkg/tracing"
	"fulfillment/internal/pkg/txn"
	couponapp "fulfillment/internal/service/coupon/application"
	coupondomain "fulfillment/internal/service/coupon/domain"
	couponinfra "fulfillment/internal/service/coupon/infrastructure"
	inventoryapp "fulfillment/internal/service/inventory/application"
	inventorydomain "fulfillment/internal/service/inventory/domain"
	inventoryinfra "fulfillment/internal/service/inventory/infrastructure"
	"fulfillment/internal/service/order/application"
	orderdomain "fulfillment/internal/service/order/domain"
	orderinfra "fulfillment/internal/service/order/infrastructure"
	"fulfillment/internal/service/order/infrastructure/adapter"
	"fulfillment/internal/service/order/interfaces"
	"fulfillment/internal/service/order/port"
	paymentdomain "fulfillment/internal/service/payment/domain"
	paymentinfra "fulfillment/internal/service/payment/infrastructure"
	pointapp "fulfillment/internal/service/point/application"
	pointdomain "fulfillment/internal/service/point/domain"
	pointinfra "fulfillment/internal/service/point/infrastructure"
	"fulfillment/internal/store/gormstore"
	"fulfillment/internal/store/memstore"
)

// userDirectory 是用户目录加上初始化用的注册能力
type userDirectory interface {
	port.UserDirectory
	Register(ctx context.Context, userID, name string) error
}

// backend 汇总一种存储实现下的事务管理器和全部仓储
type backend struct {
	tx       txn.Manager
	products inventorydomain.ProductRepository
	coupons  coupondomain.CouponRepository
	points   pointdomain.PointRepository
	orders   orderdomain.OrderRepository
	payments paymentdomain.PaymentRepository
	users    userDirectory
}

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	configPath := flag.String("config", os.Getenv("FULFILLMENT_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel)

	if err := run(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
}

func run(ctx context.Context, cfg *bootstrap.Config) error {
	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		return err
	}
	tracer := otel.Tracer(cfg.App.Name)
	cleanups := []func(context.Context) error{tp.Shutdown}

	be, err := openBackend(cfg.Store)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	inventory := inventoryapp.NewLedger(be.products, be.tx, tracer, m)
	coupons := couponapp.NewLedger(be.coupons, be.tx, tracer, m)
	points := pointapp.NewLedger(be.points, be.tx, tracer, m)

	deps := application.Deps{
		Tx:       be.tx,
		Users:    be.users,
		Catalog:  inventory,
		Stock:    inventory,
		Coupons:  coupons,
		Points:   points,
		Orders:   be.orders,
		Payments: be.payments,
		Metrics:  m,
	}

	kafkaClient := mq.NewClient(cfg.Kafka.Brokers)
	if kafkaClient.Enabled() {
		exporter := adapter.NewOrderExportKafkaAdapter(kafkaClient.NewWriter(cfg.Kafka.ExportTopic))
		deps.Exporter = exporter
		cleanups = append(cleanups, func(context.Context) error { return exporter.Close() })
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		deps.Idempotency = adapter.NewIdempotencyRedisAdapter(rdb, cfg.Idempotency.TTL)
		cleanups = append(cleanups, func(context.Context) error { return rdb.Close() })
	} else {
		deps.Idempotency = adapter.NewIdempotencyMemoryAdapter(cfg.Idempotency.TTL)
	}

	var simulator *adapter.PaymentSimulator
	switch cfg.Payment.Mode {
	case bootstrap.GatewayHTTP:
		deps.Gateway = adapter.NewPaymentHTTPAdapter(httpclient.NewClient(tracer, cfg.Payment.Timeout), cfg.Payment.URL)
	default:
		simulator = adapter.NewPaymentSimulator(cfg.Payment.SuccessRatio, cfg.Payment.Delay)
		deps.Gateway = simulator
	}

	svc := application.NewOrderApplicationService(deps, tracer)

	var workers []func(context.Context) error
	if kafkaClient.Enabled() {
		// 回调先发到 Kafka，再由消费者交给应用服务，与外部网关走同一条路径
		producerWriter := kafkaClient.NewWriter(cfg.Kafka.CallbackTopic)
		consumer := orderinfra.NewPaymentCallbackConsumerAdapter(
			kafkaClient.NewReader(cfg.Kafka.CallbackTopic, cfg.Kafka.GroupID), svc, cfg.Kafka.CallbackTopic)
		workers = append(workers, consumer.Run)
		cleanups = append(cleanups,
			func(context.Context) error { return consumer.Stop() },
			func(context.Context) error { return producerWriter.Close() },
		)
		if simulator != nil {
			simulator.SetHandler(orderinfra.NewPaymentCallbackProducerAdapter(producerWriter))
		}
	} else if simulator != nil {
		simulator.SetHandler(svc)
	}
	if simulator != nil {
		cleanups = append(cleanups, func(context.Context) error {
			simulator.Wait()
			return nil
		})
	}

	if err := seed(ctx, cfg.Seed, be, inventory, coupons, points); err != nil {
		return err
	}

	handler := interfaces.NewOrderHandler(svc, registry)
	return bootstrap.StartService(ctx, bootstrap.AppInfo{
		ServiceName:      cfg.App.Name,
		Port:             cfg.App.Port,
		Nacos:            cfg.Nacos,
		RegisterHandlers: func(mux *http.ServeMux) { handler.RegisterRoutes(mux) },
		Workers:          workers,
		Cleanups:         cleanups,
	})
}

func openBackend(cfg bootstrap.StoreConfig) (*backend, error) {
	if cfg.Driver != bootstrap.StoreMySQL {
		store := memstore.New(cfg.LockTimeout)
		log.Info().Dur("lock_timeout", cfg.LockTimeout).Msg("using in-memory store")
		return &backend{
			tx:       store,
			products: inventoryinfra.NewMemoryProductRepository(store),
			coupons:  couponinfra.NewMemoryCouponRepository(store),
			points:   pointinfra.NewMemoryPointRepository(store),
			orders:   orderinfra.NewMemoryRepository(store),
			payments: paymentinfra.NewMemoryPaymentRepository(store),
			users:    adapter.NewMemoryUserDirectory(),
		}, nil
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&adapter.UserModel{},
		&inventoryinfra.ProductModel{},
		&couponinfra.CouponModel{},
		&pointinfra.PointModel{},
		&orderinfra.OrderModel{},
		&orderinfra.OrderItemModel{},
		&paymentinfra.PaymentModel{},
	); err != nil {
		return nil, err
	}
	log.Info().Dur("lock_timeout", cfg.LockTimeout).Msg("using mysql store")
	return &backend{
		tx:       gormstore.NewTxManager(db, cfg.LockTimeout),
		products: inventoryinfra.NewGormProductRepository(db),
		coupons:  couponinfra.NewGormCouponRepository(db),
		points:   pointinfra.NewGormPointRepository(db),
		orders:   orderinfra.NewMysqlRepository(db),
		payments: paymentinfra.NewGormPaymentRepository(db),
		users:    adapter.NewGormUserDirectory(db),
	}, nil
}
