package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMTimeout   ReasonCode = "llm_timeout"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSConnect    ReasonCode = "tts_connect"
	ReasonTTSWrite      ReasonCode = "tts_write"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonStoreAppend    ReasonCode = "store_append"
	ReasonUnknownSession ReasonCode = "unknown_session"
	ReasonVoiceNotFound  ReasonCode = "voice_not_found"

	ReasonDialCreate               ReasonCode = "dial_create"
	ReasonWebhookInvalidSignature  ReasonCode = "webhook_invalid_signature"
	ReasonWebhookMalformedPayload  ReasonCode = "webhook_malformed_payload"
)
