// Package server hosts the VodForge API and HLS delivery from a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// metrics, security headers, CORS, rate limiting, and an optional bearer
// token guard so handlers all share common protections and instrumentation.
package server
