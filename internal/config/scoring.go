package config

import (
	"strings"
	"time"
)

// ScoringConfig holds the scoring weights and decision thresholds.
// Defaults follow the documented deployment: a 40/60 rule/ML blend,
// fraud at 0.7, broadcast at 0.3.
type ScoringConfig struct {
	RuleWeight            float64
	MLWeight              float64
	FraudThreshold        float64
	AlertThreshold        float64
	MLReasonThreshold     float64
	MLHighReasonThreshold float64
	ModelPath             string
}

// KafkaConfig holds broker and topic settings for the streaming path.
type KafkaConfig struct {
	Brokers          []string
	TransactionTopic string
	DeadLetterTopic  string
	ConsumerGroup    string
	MaxRetries       int
	RetryBackoff     time.Duration
}

// BroadcastConfig holds subscriber registry settings.
type BroadcastConfig struct {
	BufferSize       int
	KeepAliveTimeout time.Duration
	SweepInterval    time.Duration
}

// LoadScoring reads scoring configuration from the environment.
func LoadScoring() ScoringConfig {
	return ScoringConfig{
		RuleWeight:            GetFloatEnv("RULE_WEIGHT", 0.4),
		MLWeight:              GetFloatEnv("ML_WEIGHT", 0.6),
		FraudThreshold:        GetFloatEnv("FRAUD_THRESHOLD", 0.7),
		AlertThreshold:        GetFloatEnv("ALERT_THRESHOLD", 0.3),
		MLReasonThreshold:     GetFloatEnv("ML_REASON_THRESHOLD", 0.5),
		MLHighReasonThreshold: GetFloatEnv("ML_HIGH_REASON_THRESHOLD", 0.7),
		ModelPath:             GetEnv("MODEL_PATH", "models/fraud_model.json"),
	}
}

// LoadKafka reads Kafka configuration from the environment.
func LoadKafka() KafkaConfig {
	return KafkaConfig{
		Brokers:          splitList(GetEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")),
		TransactionTopic: GetEnv("KAFKA_TRANSACTION_TOPIC", "fraud-detection-transactions"),
		DeadLetterTopic:  GetEnv("KAFKA_DLQ_TOPIC", "fraud-detection-transactions-dlq"),
		ConsumerGroup:    GetEnv("KAFKA_CONSUMER_GROUP", "fraud-detection-consumer-group"),
		MaxRetries:       GetIntEnv("KAFKA_MAX_RETRIES", 3),
		RetryBackoff:     GetDurationEnv("KAFKA_RETRY_BACKOFF", 500*time.Millisecond),
	}
}

// LoadBroadcast reads broadcaster configuration from the environment.
func LoadBroadcast() BroadcastConfig {
	return BroadcastConfig{
		BufferSize:       GetIntEnv("BROADCAST_BUFFER_SIZE", 16),
		KeepAliveTimeout: GetDurationEnv("BROADCAST_KEEPALIVE_TIMEOUT", 90*time.Second),
		SweepInterval:    GetDurationEnv("BROADCAST_SWEEP_INTERVAL", 30*time.Second),
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
