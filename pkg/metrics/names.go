package metrics

// Well-known event names recorded by the conversation core.
const (
	EventReplyLatency     = "reply_latency_ms"
	EventSummaryLatency   = "summary_latency_ms"
	EventSynthesisLatency = "synthesis_latency_ms"
	EventFallbackReply    = "fallback_reply"
	EventFallbackSummary  = "fallback_summary"
	EventStoreRetry       = "store_append_retry"
	EventCallCompleted    = "call_completed"
	EventCallFailed       = "call_failed"

	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
	EventRateLimit     = "rate_limit"
)
