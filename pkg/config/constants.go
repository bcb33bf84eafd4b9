package config

// EnvPrefix is intentionally empty; every field names its env var explicitly.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SUMIT_DB_DSN"
	EnvDBHost = "SUMIT_DB_HOST"
	EnvDBUser = "SUMIT_DB_USER"
	EnvDBName = "SUMIT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
