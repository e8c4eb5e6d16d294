// Package browser implements the browseruse tool service.
//
// A browser session pairs a session ID with one live Chromium instance
// launched through Playwright. Sessions are created explicitly by the
// create_session tool, bounded by max_sessions, and every other tool call
// must carry a session ID. The Driver interface isolates Playwright from the
// dispatch logic so tests can substitute an in-memory driver.
package browser
