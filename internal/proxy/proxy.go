package proxy

import (
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Forwards requests to the upstream GraphQL executor. The gateway owns the
// audit pipeline; execution itself lives upstream.
type Proxy struct {
	target  *url.URL
	reverse *httputil.ReverseProxy
}

func New(targetURL string) (*Proxy, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	return &Proxy{
		target:  target,
		reverse: httputil.NewSingleHostReverseProxy(target),
	}, nil
}

// Forwards the request to the upstream
func (p *Proxy) Handle(c *gin.Context) {
	req := c.Request
	req.Header.Set("X-Forwarded-Host", req.Header.Get("Host"))
	req.Host = p.target.Host

	if clientIP := c.ClientIP(); clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	p.reverse.ServeHTTP(c.Writer, req)
}

func (p *Proxy) Target() string {
	return p.target.String()
}
