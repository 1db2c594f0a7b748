package download

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver 从请求中解析真实客户端 IP 的策略接口
type ClientIPResolver interface {
	ClientIP(r *http.Request) string
}

// TrustedProxyResolver 带可信代理白名单的 IP 解析
// 只有当直连地址属于可信代理时才采信转发头，否则转发头可被伪造，一律忽略
type TrustedProxyResolver struct {
	trusted []*net.IPNet
}

// NewTrustedProxyResolver 创建解析器
// proxies 接受 CIDR 或单个 IP，单个 IP 自动按 /32 与 /128 处理
func NewTrustedProxyResolver(proxies []string) *TrustedProxyResolver {
	r := &TrustedProxyResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			if strings.Contains(p, ":") {
				p += "/128"
			} else {
				p += "/32"
			}
		}
		if _, ipnet, err := net.ParseCIDR(p); err == nil {
			r.trusted = append(r.trusted, ipnet)
		}
	}
	return r
}

var _ ClientIPResolver = (*TrustedProxyResolver)(nil)

// ClientIP 解析客户端 IP
// 直连地址来自可信代理时依次采信 X-Real-IP 和 X-Forwarded-For 最左侧地址
func (r *TrustedProxyResolver) ClientIP(req *http.Request) string {
	remote := remoteIP(req.RemoteAddr)
	if !r.isTrusted(remote) {
		return remote
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	return remote
}

func (r *TrustedProxyResolver) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipnet := range r.trusted {
		if ipnet.Contains(parsed) {
			return true
		}
	}
	return false
}

// remoteIP 剥离 host:port 中的端口
func remoteIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
