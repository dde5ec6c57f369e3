package interceptors

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// client ip as seen by the proxy in front of the server, falls back to the remote address
func getIP(c *gin.Context) (*string, error) {
	ip := c.Request.Header.Get("X-Real-IP")
	if len(ip) > 0 {
		return &ip, nil
	}

	ip = c.Request.Header.Get("X-Forwarded-For")
	ipList := strings.Split(ip, ",")
	if len(strings.TrimSpace(ipList[0])) > 0 {
		first := strings.TrimSpace(ipList[0])
		return &first, nil
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return nil, err
	}
	return &ip, nil
}
