// Package config loads taskhub configuration.
//
// Values come from three layers, later layers winning:
//
//  1. Default()
//  2. the YAML file named by TASKHUB_CONFIG_FILE, if set
//  3. TASKHUB_* environment variables
//
// Common variables:
//
//	TASKHUB_PORT="8000"
//	TASKHUB_DB_DRIVER="postgres"          # or sqlite3
//	TASKHUB_DATABASE_URL="postgres://..."
//	TASKHUB_REDIS_URL="redis://localhost:6379/0"
//	TASKHUB_JWT_SECRET="..."              # at least 32 bytes
//	TASKHUB_ML_SERVICE_URL="http://ml:5000"
//	TASKHUB_GOOGLE_CLIENT_ID / _CLIENT_SECRET / _REDIRECT_URL
//	TASKHUB_GITHUB_CLIENT_ID / _CLIENT_SECRET / _REDIRECT_URL
//	TASKHUB_S3_BUCKET="taskhub-archive"
//	TASKHUB_LOG_LEVEL="info"
//
// WatchFile re-reads the YAML file on change. The server only applies the
// log level from a reload; other settings take effect on restart.
package config
