// Package logging provides file-based structured logging with rotation
// for Fileseer. Logs are written as JSON to ~/.fileseer/logs/ so that
// long-running watch sessions can be diagnosed after the fact.
//
// In MCP server mode logs go to file only: stdout carries the JSON-RPC
// stream and must never receive log output.
package logging
