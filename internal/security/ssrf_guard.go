package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はユーザーが指定する外部URL(画像URL・アバターURL)の安全性を検証する。
type SSRFGuardService interface {
	// NewSafeClient は内部ネットワーク宛ての接続を拒否するHTTPクライアントを生成する。
	// 接続先IPはDNS解決後にDialerで検証される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決を伴わない静的検証を行う。
	// http/https以外のスキーム、空ホスト、内部アドレス、localhostを拒否する。
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedNetworks はValidateURLで拒否するアドレス範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"127.0.0.0/8",
	// クラウドメタデータIP (169.254.169.254) を含む
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::/128",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// 許可ポートは80/443のみ。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性を静的に検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}
	if parsed.User != nil {
		return fmt.Errorf("credentials in URL are not allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はlocalhostおよび*.localhostを拒否する。
func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	return lower == "localhost" || strings.HasSuffix(lower, ".localhost")
}
