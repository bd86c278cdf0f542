package conf

import (
	"os"
	"strings"
)

// IsDebug reports whether SPROUT_DEBUG=true is set in the environment.
func IsDebug() bool {
	return os.Getenv(strings.ToUpper(APP_NAME)+"_DEBUG") == "true"
}
