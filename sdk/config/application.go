package config

// Application 应用程序配置
type Application struct {
	Mode string `mapstructure:"mode" json:"mode"` // dev, test, prod
	Name string `mapstructure:"name" json:"name"` // 进程名，日志与指标命名空间使用
}

var ApplicationConfig = new(Application)
