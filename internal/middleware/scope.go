package middleware

import "net/http"

// mutatesPoolState reports whether method is a state-changing one (POST,
// PUT, PATCH or DELETE; on the admin API, POST/DELETE on /api/backends
// register or remove a backend) as opposed to reading status (GET on
// /healthz, /api/stats, /api/backends). Only the method is checked, not
// the path. RateLimiter and JWTAuth both use
// this split: status polling from a monitoring system should not share a
// bucket or a token scope with changes to the backend pool.
func mutatesPoolState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
