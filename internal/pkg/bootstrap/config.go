// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"orderflow/internal/pkg/logger"
)

// Config 是进程级配置。优先从 ORDERFLOW_CONFIG 指向的 yaml 文件加载，
// 关键字段再被环境变量覆盖，便于容器环境下不改文件调参。
type Config struct {
	App struct {
		JaegerEndpoint string   `yaml:"jaegerEndpoint"`
		KafkaBrokers   []string `yaml:"kafkaBrokers"`
		RedisAddr      string   `yaml:"redisAddr"`
		MysqlDSN       string   `yaml:"mysqlDSN"`
		ZookeeperAddrs []string `yaml:"zookeeperAddrs"`

		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`

		// 出站适配器的服务端点（服务名 -> 基础地址）
		Endpoints map[string]string `yaml:"endpoints"`

		Topics struct {
			OrderEvents    string `yaml:"orderEvents"`
			FailureReports string `yaml:"failureReports"`
		} `yaml:"topics"`

		Order struct {
			// signatureRule 是签名策略的 CEL 表达式
			SignatureRule string `yaml:"signatureRule"`
			// pendingTimeout 超过该时长仍处于 PENDING 的订单由 timeout-watcher 上报
			PendingTimeout time.Duration `yaml:"pendingTimeout"`
		} `yaml:"order"`
	} `yaml:"app"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// GetCurrentConfig 返回进程配置。首次调用时完成加载。
func GetCurrentConfig() *Config {
	configOnce.Do(loadConfig)
	return &currentConfig
}

func loadConfig() {
	applyDefaults(&currentConfig)

	if path := os.Getenv("ORDERFLOW_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Logger().Fatal().Err(err).Str("path", path).Msg("cannot read config file")
		}
		if err := yaml.Unmarshal(data, &currentConfig); err != nil {
			logger.Logger().Fatal().Err(err).Str("path", path).Msg("cannot parse config file")
		}
	}

	applyEnvOverrides(&currentConfig)
}

func applyDefaults(cfg *Config) {
	cfg.App.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.App.KafkaBrokers = []string{"localhost:9092"}
	cfg.App.RedisAddr = "localhost:6379"
	cfg.App.MysqlDSN = "root:root@tcp(localhost:3306)/orderflow?charset=utf8mb4&parseTime=True"
	cfg.App.ZookeeperAddrs = []string{"localhost:2181"}
	cfg.App.Nacos.ServerAddrs = "localhost:8848"
	cfg.App.Nacos.Group = "DEFAULT_GROUP"
	cfg.App.Endpoints = map[string]string{
		"address-service":  "http://localhost:8091",
		"payment-service":  "http://localhost:8092",
		"shipping-service": "http://localhost:8093",
	}
	cfg.App.Topics.OrderEvents = "order-events"
	cfg.App.Topics.FailureReports = "order-failure-reports"
	cfg.App.Order.SignatureRule = ""
	cfg.App.Order.PendingTimeout = 30 * time.Minute
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.App.JaegerEndpoint = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.App.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.App.RedisAddr = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.App.MysqlDSN = v
	}
	if v := os.Getenv("ZOOKEEPER_ADDRS"); v != "" {
		cfg.App.ZookeeperAddrs = strings.Split(v, ",")
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.App.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.App.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.App.Nacos.Group = v
	}
}
