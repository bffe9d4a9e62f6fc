// Package api exposes the HTTP interface of the progress service: session
// lifecycle control, execution-event injection for pipelines that report
// over HTTP, and read-only snapshot/history endpoints for dashboards.
package api
