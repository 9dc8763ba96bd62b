package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	CartClearAll     = "all"
	CartClearOrdered = "ordered"
)

const (
	EnvAppEnv               = "STOREFRONT_APP_ENV"
	EnvPort                 = "STOREFRONT_APP_PORT"
	EnvDBDSN                = "STOREFRONT_DB_DSN"
	EnvDBHost               = "STOREFRONT_DB_HOST"
	EnvDBUser               = "STOREFRONT_DB_USER"
	EnvDBName               = "STOREFRONT_DB_NAME"
	EnvRedisURL             = "STOREFRONT_REDIS_URL"
	EnvRedisAddr            = "STOREFRONT_REDIS_ADDR"
	EnvJWTSecret            = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer            = "STOREFRONT_JWT_ISSUER"
	EnvUseSQLite            = "STOREFRONT_USE_SQLITE"
	EnvCheckoutTaxRate      = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvCheckoutFlatShipping = "STOREFRONT_CHECKOUT_FLAT_SHIPPING_FEE"
	EnvCartClearPolicy      = "STOREFRONT_CART_CLEAR_POLICY"
	EnvRazorpayKeyID        = "STOREFRONT_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret    = "STOREFRONT_RAZORPAY_KEY_SECRET"
	EnvPaymentCurrency      = "STOREFRONT_PAYMENT_CURRENCY"
	EnvGCPProjectID         = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic    = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
