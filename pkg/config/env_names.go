package config

// EnvPrefix namespaces every environment variable the app reads.
const EnvPrefix = "DEALERDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "DEALERDESK_APP_ENV"
	EnvPort   = "DEALERDESK_APP_PORT"

	EnvDBDSN  = "DEALERDESK_DB_DSN"
	EnvDBHost = "DEALERDESK_DB_HOST"
	EnvDBUser = "DEALERDESK_DB_USER"
	EnvDBName = "DEALERDESK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
