package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper" // 导入 Viper
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// BaseURL 站点对外地址，用于拼接下载链接，例如 http://archive.example.com
	BaseURL string `mapstructure:"base_url"`
	// PrettyURLs 为 false 时下载链接退化为查询参数形式 /?gbbs_download=...
	PrettyURLs bool `mapstructure:"pretty_urls"`
	// TrustedProxies 可信反向代理地址，只有请求来自这些地址时才信任转发头
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"` // OSS SDK 默认是HTTPS，但为了明确
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	ExpiresIn time.Duration `mapstructure:"expires_in"` // 使用 time.Duration 更清晰
	Issuer    string        `mapstructure:"issuer"`
}

type StorageConfig struct {
	// Type 存储后端类型: local / minio / aliyun_oss
	Type string `mapstructure:"type"`
	// UploadBasePath 本地上传根目录，档案目录树建立在它下面
	UploadBasePath string `mapstructure:"upload_base_path"`
	// UploadBaseURL 上传根目录对应的公开 URL
	UploadBaseURL string `mapstructure:"upload_base_url"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	// ArchiveIndex 档案索引名称
	ArchiveIndex string `mapstructure:"archive_index"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")               // 配置文件名 (不带扩展名)
	viper.SetConfigType("yaml")                 // 配置文件类型
	viper.AddConfigPath(".")                    // 在当前目录查找配置文件
	viper.AddConfigPath("./configs")            // 也可以添加其他路径，例如 ./configs/
	viper.AddConfigPath("/etc/gbbs-archive/")   // 生产环境常见路径

	// 读取环境变量，环境变量名将自动转换为大写，并用下划线替换点
	// 例如：SERVER.PORT 对应环境变量 GBBS_ARCHIVE_SERVER_PORT
	viper.SetEnvPrefix("GBBS_ARCHIVE")
	viper.AutomaticEnv() // 自动绑定环境变量

	// 替换环境变量中的点为下划线，确保Viper能正确映射如 MYSQL_DSN 到 mysql.dsn
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// 设置默认值 (如果配置文件和环境变量中都没有，则使用这些默认值)
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.pretty_urls", true)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.upload_base_path", "./uploads")
	viper.SetDefault("storage.upload_base_url", "http://localhost:8080/uploads")
	viper.SetDefault("elasticsearch.archive_index", "gbbs_archives")
	viper.SetDefault("log.output_path", "logs/app.log")
	viper.SetDefault("log.error_path", "logs/error.log")
	viper.SetDefault("log.level", "info")

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件未找到，但这不是致命错误，因为我们可以依赖环境变量或默认值
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			// 其他读取错误，例如配置文件格式错误
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	// 将读取到的配置绑定到结构体
	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
