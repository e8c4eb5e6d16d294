// Package server hosts the openmcp HTTP API.
//
// The Server wires the configuration, the API key manager, and the service
// registry behind a gorilla/mux route table. Unauthenticated endpoints are
// the root banner and /health; everything under /api/v1 passes the auth
// middleware. Tool calls always answer 200 with a success flag so clients
// distinguish transport failures (401/403/404) from tool failures carried in
// the body. A streaming variant delivers the same payload over SSE.
package server
