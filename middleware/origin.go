package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy 浏览器来源白名单。
// 没有 Origin 的请求（命令行、MCP 客户端）和同源请求总是放行，其余来源必须在列表中，"*" 表示全部放行。
type OriginPolicy struct {
	allowAll bool
	origins  map[string]bool
}

func NewOriginPolicy(allowed []string) *OriginPolicy {
	p := &OriginPolicy{origins: make(map[string]bool)}
	for _, o := range allowed {
		o = normalizeOrigin(o)
		if o == "*" {
			p.allowAll = true
			continue
		}
		if o != "" {
			p.origins[o] = true
		}
	}
	return p
}

func (p *OriginPolicy) AllowOrigin(origin string) bool {
	return p.allowAll || p.origins[normalizeOrigin(origin)]
}

// CheckRequest 用作 WebSocket 升级的来源校验
func (p *OriginPolicy) CheckRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	return p.AllowOrigin(origin)
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}
