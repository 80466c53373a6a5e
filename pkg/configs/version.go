package configs

// 构建信息，可通过 -ldflags "-X github.com/yeisme/ingestvault/pkg/configs.AppVersion=v1.2.3" 覆盖.
var (
	AppName    = "ingestvault"
	AppVersion = "0.1.0"
)
