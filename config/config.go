package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yaml"

	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultModel         = "gemini-2.0-flash"
	defaultAPIKeyEnv     = "GEMINI_API_KEY"
	defaultMaxIterations = 8
	defaultModelTimeout  = 300 * time.Second
)

var ErrMissingAPIKey = errors.New("model api key is not set")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	MQ        MQConfig        `yaml:"mq"`
	MCP       MCPConfig       `yaml:"mcp"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`

	// 允许访问接口的浏览器来源，同源请求无需配置
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ModelConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Name          string        `yaml:"name"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Tracing       bool          `yaml:"tracing"`
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`

	// 只从环境变量读取，不写入配置文件
	APIKey string `yaml:"-"`
}

type WorkspaceConfig struct {
	// 为空时使用进程工作目录
	Root string `yaml:"root"`
}

type MySQLConfig struct {
	// 为空时不启用对话归档
	DSN     string `yaml:"dsn"`
	Workers int    `yaml:"workers"`
}

type MQConfig struct {
	// 为空时不发送审计事件
	NameServer []string `yaml:"name_server"`
	Topic      string   `yaml:"topic"`
	Tag        string   `yaml:"tag"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig 外部 MCP 工具服务，Tools 为空时加载全部工具
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Tools   []string          `yaml:"tools"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8000",
		},
		Model: ModelConfig{
			BaseURL:       defaultBaseURL,
			Name:          defaultModel,
			APIKeyEnv:     defaultAPIKeyEnv,
			MaxIterations: defaultMaxIterations,
			Timeout:       defaultModelTimeout,
		},
		MySQL: MySQLConfig{
			Workers: 4,
		},
		MQ: MQConfig{
			Topic: "filecoder_turns",
			Tag:   "turn",
		},
		Log: LogConfig{
			File:  "filecoder.log",
			Level: "INFO",
		},
	}
}

// Load 读取 YAML 配置并以默认值补全缺省项；默认路径的文件不存在时直接使用默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
		}
	}

	cfg.applyDefaults()

	cfg.Model.APIKey = os.Getenv(cfg.Model.APIKeyEnv)

	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = d.Model.BaseURL
	}
	if c.Model.Name == "" {
		c.Model.Name = d.Model.Name
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = d.Model.APIKeyEnv
	}
	if c.Model.MaxIterations <= 0 {
		c.Model.MaxIterations = d.Model.MaxIterations
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = d.Model.Timeout
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.MySQL.Workers <= 0 {
		c.MySQL.Workers = d.MySQL.Workers
	}
	if c.MQ.Topic == "" {
		c.MQ.Topic = d.MQ.Topic
	}
	if c.MQ.Tag == "" {
		c.MQ.Tag = d.MQ.Tag
	}
}

// RequireAPIKey 缺少模型密钥时服务不能启动
func (c *Config) RequireAPIKey() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("%w: please ensure %s is defined in the environment", ErrMissingAPIKey, c.Model.APIKeyEnv)
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
