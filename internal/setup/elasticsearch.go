package setup

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

var EsClient *elasticsearch.Client

// InitElasticsearchClient 初始化 Elasticsearch 客户端
// 搜索是增强能力，连接失败不中断启动，服务退回数据库查询
func InitElasticsearchClient(cfg *config.ElasticsearchConfig) {
	if len(cfg.Addresses) == 0 {
		logger.Info("未配置 Elasticsearch，搜索走数据库查询")
		return
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		logger.Error("Failed to create Elasticsearch client", zap.Error(err))
		return
	}

	// 尝试连接并获取集群信息，验证连接是否成功
	res, err := client.Info()
	if err != nil {
		logger.Error("Failed to connect to Elasticsearch", zap.Error(err))
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Error("Error connecting to Elasticsearch", zap.String("status", res.Status()))
		return
	}

	EsClient = client
	logger.Info("Elasticsearch client initialized successfully.")
}
