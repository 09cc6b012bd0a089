package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "QRido"
	// PointsPerCurrencyKey sets the default points-per-currency-unit rate
	// for companies without an explicit rate.
	PointsPerCurrencyKey = "POINTS_PER_CURRENCY"
	// PointsExpiryMonthsKey sets how many months earned points stay valid.
	PointsExpiryMonthsKey = "POINTS_EXPIRY_MONTHS"
	// VerificationCodeTTLSecondsKey sets the verification code validity window.
	VerificationCodeTTLSecondsKey = "VERIFICATION_CODE_TTL_SECONDS"
	// DefaultPointsPerCurrency is the fallback earn rate.
	DefaultPointsPerCurrency = 1.0
	// DefaultPointsExpiryMonths is the fallback earn expiry (months).
	DefaultPointsExpiryMonths = 12
	// DefaultVerificationCodeTTLSeconds is the fallback code validity (seconds).
	DefaultVerificationCodeTTLSeconds = 60
)
