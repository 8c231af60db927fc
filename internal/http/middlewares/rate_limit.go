package middlewares

import (
	"net/http"
	"strconv"

	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/rate"
)

// WithRateLimit gates the handler behind a fixed-window limiter keyed
// by client_id plus source IP, so one misbehaving client cannot starve
// the others behind the same NAT.
func WithRateLimit(limiter rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// cap before touching the form: FormValue reads the whole
			// body, and this runs ahead of the controller's own cap
			r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

			key := clientIP(r)
			if cid := r.FormValue("client_id"); cid != "" {
				key = cid + " " + key
			}

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// an unreachable limiter must not take the endpoint down
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				httperrors.WriteOAuth(w, http.StatusTooManyRequests, httperrors.CodeInvalidRequest, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
