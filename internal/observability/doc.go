// Package observability records what the tracks engine does. Events go to an
// append-only JSON Lines log; metrics and alerts are derived from that log on
// demand. Ingestion counters are also exported to Prometheus, and new
// personal bests and alerts can be posted to a Slack webhook.
package observability
