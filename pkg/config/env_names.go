package config

// EnvPrefix is passed to envconfig; explicit envconfig tags carry the full
// variable names, so the prefix only matters for untagged fields.
const EnvPrefix = "luxe"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "LUXE_APP_ENV"
	EnvAppPort    = "LUXE_APP_PORT"
	EnvAppBaseURL = "LUXE_APP_BASE_URL"

	EnvDBDSN  = "LUXE_DB_DSN"
	EnvDBHost = "LUXE_DB_HOST"
	EnvDBUser = "LUXE_DB_USER"
	EnvDBName = "LUXE_DB_NAME"

	EnvRedisURL = "LUXE_REDIS_URL"

	EnvAuthSecret = "LUXE_AUTH_SECRET"
	EnvAuthIssuer = "LUXE_AUTH_ISSUER"

	EnvStripeAPIKey        = "LUXE_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "LUXE_STRIPE_WEBHOOK_SECRET"

	EnvPlanBasicPriceID      = "LUXE_PLAN_BASIC_PRICE_ID"
	EnvPlanProPriceID        = "LUXE_PLAN_PRO_PRICE_ID"
	EnvPlanEnterprisePriceID = "LUXE_PLAN_ENTERPRISE_PRICE_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
