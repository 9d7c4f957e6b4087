package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag
// so the prefix only matters for untagged fields.
const EnvPrefix = "BIZNESPILOT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BIZNESPILOT_APP_ENV"
	EnvPort     = "BIZNESPILOT_APP_PORT"
	EnvLogLevel = "BIZNESPILOT_LOG_LEVEL"

	EnvDBDSN  = "BIZNESPILOT_DB_DSN"
	EnvDBHost = "BIZNESPILOT_DB_HOST"
	EnvDBUser = "BIZNESPILOT_DB_USER"
	EnvDBName = "BIZNESPILOT_DB_NAME"
	EnvDBPort = "BIZNESPILOT_DB_PORT"

	EnvRedisURL = "BIZNESPILOT_REDIS_URL"

	EnvPaymeTransactionTimeout = "BIZNESPILOT_PAYME_TRANSACTION_TIMEOUT"
	EnvPaymeStatementLimit     = "BIZNESPILOT_PAYME_STATEMENT_LIMIT"
	EnvPaymeAllowCancelAfter   = "BIZNESPILOT_PAYME_ALLOW_CANCEL_AFTER_PERFORM"
	EnvPaymeMaxBodyBytes       = "BIZNESPILOT_PAYME_MAX_BODY_BYTES"

	EnvGCPProjectID        = "BIZNESPILOT_GCP_PROJECT_ID"
	EnvPubSubPaymentsTopic = "BIZNESPILOT_PUBSUB_PAYMENTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
