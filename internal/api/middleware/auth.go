// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/api/response"
	"github.com/newthinker/tradeledger/internal/core"
)

// APIKeyHeader carries the client key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the X-API-Key header.
// If apiKey is empty, authentication is disabled. Rejections are logged
// without the provided key.
func APIKeyAuth(apiKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(APIKeyHeader)

			var reject *core.Error
			switch {
			case provided == "":
				reject = core.WrapError(core.ErrConfigMissing, nil)
			case subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1:
				reject = core.WrapError(core.ErrConfigInvalid, nil)
			}
			if reject != nil {
				logger.Warn("api key rejected",
					zap.String("path", r.URL.Path),
					zap.String("code", reject.Code),
				)
				response.Error(w, http.StatusUnauthorized, reject)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
