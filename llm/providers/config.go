package providers

import "strings"

// Preset 已知 OpenAI 兼容服务商的默认接入参数
type Preset struct {
	BaseURL        string
	EndpointPath   string
	ModelsEndpoint string
	APIKeyEnv      string
}

// presets 按 provider 名称索引；未列出的名称必须在配置里提供 base_url
var presets = map[string]Preset{
	"openai":    {BaseURL: "https://api.openai.com", APIKeyEnv: "OPENAI_API_KEY"},
	"anthropic": {BaseURL: "https://api.anthropic.com", APIKeyEnv: "ANTHROPIC_API_KEY"},
	"google": {
		BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai",
		EndpointPath:   "/chat/completions",
		ModelsEndpoint: "/models",
		APIKeyEnv:      "GOOGLE_API_KEY",
	},
	"openrouter": {BaseURL: "https://openrouter.ai/api", APIKeyEnv: "OPENROUTER_API_KEY"},
	"deepseek":   {BaseURL: "https://api.deepseek.com", APIKeyEnv: "DEEPSEEK_API_KEY"},
	"mistral":    {BaseURL: "https://api.mistral.ai", APIKeyEnv: "MISTRAL_API_KEY"},
	"grok":       {BaseURL: "https://api.x.ai", APIKeyEnv: "XAI_API_KEY"},
	"kimi":       {BaseURL: "https://api.moonshot.cn", APIKeyEnv: "MOONSHOT_API_KEY"},
	"qwen":       {BaseURL: "https://dashscope.aliyuncs.com/compatible-mode", APIKeyEnv: "DASHSCOPE_API_KEY"},
	"glm":        {BaseURL: "https://open.bigmodel.cn/api/paas", EndpointPath: "/v4/chat/completions", APIKeyEnv: "ZHIPU_API_KEY"},
	"ollama":     {BaseURL: "http://localhost:11434"},
}

// LookupPreset 查找 provider 预设（大小写不敏感）
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}
