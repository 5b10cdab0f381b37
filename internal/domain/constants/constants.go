// Package constants contains provider names and environment identifiers read from configuration.
package constants

const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Event bus providers for notification publishing.
const (
	PubSubProviderNoop     = "noop"
	PubSubProviderLocal    = "local"
	PubSubProviderGoogle   = "google"
	PubSubProviderRabbitMQ = "rabbitmq"
)

// Scheduler backends.
const (
	SchedulerProviderMemory = "memory"
	SchedulerProviderRedis  = "redis"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt"
