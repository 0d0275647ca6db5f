package middleware

import (
	"net/http"
	"slices"
)

// CORS allows the configured origins; "*" allows any origin.
type CORS struct {
	origins []string
}

// NewCORS 根据允许的来源列表创建CORS中间件
func NewCORS(origins []string) *CORS {
	return &CORS{origins: origins}
}

// Allowed reports whether origin may call the API. It is shared with the websocket upgrader.
func (c *CORS) Allowed(origin string) bool {
	return slices.Contains(c.origins, "*") || slices.Contains(c.origins, origin)
}

// Handler 为响应添加CORS头并处理预检请求
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.Allowed(origin) {
			h := w.Header()
			if slices.Contains(c.origins, "*") {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			h.Set("Access-Control-Expose-Headers", APIVersionHeader)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
