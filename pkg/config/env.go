package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "MARKETPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "MARKETPLACE_APP_ENV"
	EnvPort         = "MARKETPLACE_APP_PORT"
	EnvDBDSN        = "MARKETPLACE_DB_DSN"
	EnvDBHost       = "MARKETPLACE_DB_HOST"
	EnvDBUser       = "MARKETPLACE_DB_USER"
	EnvDBName       = "MARKETPLACE_DB_NAME"
	EnvRedisURL     = "MARKETPLACE_REDIS_URL"
	EnvJWTSecret    = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer    = "MARKETPLACE_JWT_ISSUER"
	EnvMapsAPIKey   = "MARKETPLACE_GOOGLE_MAPS_API_KEY"
	EnvRoutingTTL   = "MARKETPLACE_ROUTING_CACHE_TTL"
	EnvGCPProjectID = "MARKETPLACE_GCP_PROJECT_ID"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
