package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	MQ       MQConfig       `yaml:"mq"`
	OSS      OSSConfig      `yaml:"oss"`
	JWT      JWTConfig      `yaml:"jwt"`
	Model    ModelConfig    `yaml:"model"`
	ASR      ASRConfig      `yaml:"asr"`
	Media    MediaConfig    `yaml:"media"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         string   `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	NameServer []string `yaml:"name_server"`
}

type OSSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	BucketName      string `yaml:"bucket_name"`
}

type JWTConfig struct {
	SecretKey   string `yaml:"secret_key"`
	ExpireHours int    `yaml:"expire_hours"`
}

// ModelConfig 嵌入模型服务配置（OpenAI兼容接口）
type ModelConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`

	// 主模型初始化失败时使用的回退模型
	FallbackEmbeddingModel string `yaml:"fallback_embedding_model"`

	BatchSize int `yaml:"batch_size"`
}

type ASRConfig struct {
	// 主引擎：WebSocket流式识别
	WSEndpoint string `yaml:"ws_endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	SampleRate int    `yaml:"sample_rate"`

	// 次引擎：一次性HTTP识别
	HTTPEndpoint string `yaml:"http_endpoint"`
	HTTPModel    string `yaml:"http_model"`
}

type MediaConfig struct {
	MediaDir string `yaml:"media_dir"`
	AudioDir string `yaml:"audio_dir"`
	IndexDir string `yaml:"index_dir"`
}

type PipelineConfig struct {
	MaxChunkChars int      `yaml:"max_chunk_chars"`
	Fillers       []string `yaml:"fillers"`
	DefaultTopK   int      `yaml:"default_top_k"`
}

// Cfg 全局配置，进程启动时加载一次
var Cfg *Config

func init() {
	// .env 仅用于本地开发，缺失时忽略
	_ = godotenv.Load()

	cfg := defaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(fmt.Sprintf("failed to parse config file %s: %v", path, err))
		}
	} else if !os.IsNotExist(err) {
		panic(fmt.Sprintf("failed to read config file %s: %v", path, err))
	} else {
		slog.Warn("config file not found, using defaults", "path", path)
	}

	applyEnvOverrides(cfg)
	Cfg = cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8000",
			AllowOrigins: []string{"http://localhost:5173"},
		},
		DB: DBConfig{
			Host: "127.0.0.1",
			Port: 3306,
			User: "cognito",
			Name: "cognito",
		},
		MQ: MQConfig{
			NameServer: []string{"127.0.0.1:9876"},
		},
		JWT: JWTConfig{
			ExpireHours: 24,
		},
		Model: ModelConfig{
			BaseURL:                "https://dashscope.aliyuncs.com/compatible-mode/v1",
			EmbeddingModel:         "text-embedding-v4",
			FallbackEmbeddingModel: "text-embedding-v3",
			BatchSize:              10,
		},
		ASR: ASRConfig{
			WSEndpoint:   "wss://dashscope.aliyuncs.com/api-ws/v1/inference",
			Model:        "paraformer-realtime-v2",
			SampleRate:   16000,
			HTTPEndpoint: "https://dashscope.aliyuncs.com/api/v1/services/audio/asr/transcription",
			HTTPModel:    "paraformer-v2",
		},
		Media: MediaConfig{
			MediaDir: "data/media",
			AudioDir: "data/audio",
			IndexDir: "data/index",
		},
		Pipeline: PipelineConfig{
			MaxChunkChars: 500,
			Fillers:       []string{"嗯", "啊", "那个", "就是", "然后", "um", "uh"},
			DefaultTopK:   5,
		},
	}
}

// applyEnvOverrides 机密与部署相关项允许用环境变量覆盖配置文件
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("MQ_NAME_SERVER"); v != "" {
		cfg.MQ.NameServer = strings.Split(v, ",")
	}
	if v := os.Getenv("OSS_ACCESS_KEY_ID"); v != "" {
		cfg.OSS.AccessKeyID = v
	}
	if v := os.Getenv("OSS_ACCESS_KEY_SECRET"); v != "" {
		cfg.OSS.AccessKeySecret = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("ASR_API_KEY"); v != "" {
		cfg.ASR.APIKey = v
	}
}
