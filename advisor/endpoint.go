package advisor

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultChatPath = "/chat/completions"

// ResolveChatEndpoint 把服务商 base URL 规范化为 Chat Completions 端点
// 已经是完整端点的路径保持不变，允许 https://api.openai.com/v1 这类写法
func ResolveChatEndpoint(base string) (string, error) {
	raw := strings.TrimSpace(base)
	if raw == "" {
		return "", fmt.Errorf("base_url 为空")
	}
	u, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base_url 非法")
	}

	p := strings.TrimSpace(u.Path)
	switch {
	case strings.HasSuffix(p, "/chat/completions"):
		// already full endpoint
	case p == "" || p == "/":
		u.Path = defaultChatPath
	case p == "/v1" || p == "/v1/":
		u.Path = "/v1" + defaultChatPath
	default:
		u.Path = strings.TrimSuffix(p, "/") + defaultChatPath
	}
	return u.String(), nil
}
