package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mailio/go-keyless-server/types"
	"golang.org/x/net/idna"
)

var authMessageValidator = validator.New()

// exact JSON keys of types.AuthMessage (encoding/json would also accept other casings)
var authMessageFields = map[string]bool{"type": true, "id_token": true}

// NormalizeOrigin lowercases scheme and host and converts an internationalized host to its ASCII form
func NormalizeOrigin(origin string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return "", types.ErrInvalidOrigin
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return "", err
	}
	if port := u.Port(); port != "" {
		host = host + ":" + port
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(host), nil
}

// ParseAuthMessage trusts the payload only after the sender origin is one of the allowed origins
// and the payload matches the single allowed message shape.
func ParseAuthMessage(origin string, allowedOrigins []string, payload []byte) (*types.AuthMessage, error) {
	if origin == "" {
		return nil, types.ErrInvalidOrigin
	}
	normalized, err := NormalizeOrigin(origin)
	if err != nil {
		return nil, types.ErrInvalidOrigin
	}
	allowed := false
	for _, o := range allowedOrigins {
		if n, nErr := NormalizeOrigin(o); nErr == nil && n == normalized {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, types.ErrInvalidOrigin
	}

	var msg types.AuthMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAuthMessage, err.Error())
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", types.ErrInvalidAuthMessage)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAuthMessage, err.Error())
	}
	for name := range fields {
		if !authMessageFields[name] {
			return nil, fmt.Errorf("%w: unexpected field %q", types.ErrInvalidAuthMessage, name)
		}
	}
	if err := authMessageValidator.Struct(&msg); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAuthMessage, err.Error())
	}
	return &msg, nil
}
