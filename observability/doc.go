// Package observability provides the structured logger and Prometheus
// metrics shared by the agent loop, the MCP server and the CLI.
package observability
