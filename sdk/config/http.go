package config

import "time"

// HTTPConfig HTTP服务器配置(Gin)，承载 /trigger、/healthz、/metrics
type HTTPConfig struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`               // 是否启用HTTP服务
	Host           string `mapstructure:"host" json:"host"`                     // 服务器绑定IP
	Port           int    `mapstructure:"port" json:"port"`                     // HTTP端口
	ReadTimeout    int    `mapstructure:"readtimeout" json:"readtimeout"`       // 读取超时(秒)
	WriteTimeout   int    `mapstructure:"writetimeout" json:"writetimeout"`     // 写入超时(秒)
	IdleTimeout    int    `mapstructure:"idletimeout" json:"idletimeout"`       // 空闲超时(秒)
	MaxHeaderBytes int    `mapstructure:"maxheaderbytes" json:"maxheaderbytes"` // 最大请求头(MB)
}

var HttpConfig = new(HTTPConfig)

// ReadTimeoutDuration 读取超时
func (c *HTTPConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// WriteTimeoutDuration 写入超时
func (c *HTTPConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// IdleTimeoutDuration 空闲超时
func (c *HTTPConfig) IdleTimeoutDuration() time.Duration {
	return time.Duration(c.IdleTimeout) * time.Second
}
