// Package metrics declares the Prometheus collectors exported by both
// binaries: registered in init() the way upstream client_golang
// examples do it, scraped via Handler() mounted at /metrics.
package metrics
