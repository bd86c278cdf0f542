package middleware

import (
	"strings"
	"sync"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/utils/xstrings"
	"github.com/dlclark/regexp2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func Cors() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowCredentials = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"*"}
	config.ExposeHeaders = []string{"Content-Disposition"}
	config.AllowOriginFunc = originAllowed
	return cors.New(config)
}

var corsPatterns sync.Map // pattern string -> *regexp2.Regexp

// originAllowed evaluates the cors_allow_origins setting on every preflight,
// so changes apply without a restart:
// - empty: no cross-origin access
// - "*": every origin
// - comma separated entries: full origin (https://example.com), bare host
//   (example.com), or a /pattern/ matched against the whole origin, for
//   deploy-preview hosts like /^https:\/\/pr-\d+\.example\.dev$/
func originAllowed(origin string) bool {
	allowed, err := op.SettingGetString(model.SettingKeyCORSAllowOrigins)
	if err != nil {
		return false
	}
	allowed = strings.TrimSpace(allowed)
	if allowed == "" {
		return false
	}
	if allowed == "*" {
		return true
	}

	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimRight(originHost, "/")

	for _, item := range xstrings.SplitTrimCompact(",", allowed) {
		if len(item) > 2 && strings.HasPrefix(item, "/") && strings.HasSuffix(item, "/") {
			if matchOriginPattern(item[1:len(item)-1], origin) {
				return true
			}
			continue
		}
		item = strings.TrimRight(item, "/")
		if item == origin || item == originHost {
			return true
		}
	}
	return false
}

func matchOriginPattern(pattern, origin string) bool {
	var re *regexp2.Regexp
	if cached, ok := corsPatterns.Load(pattern); ok {
		re = cached.(*regexp2.Regexp)
	} else {
		compiled, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return false
		}
		corsPatterns.Store(pattern, compiled)
		re = compiled
	}
	matched, err := re.MatchString(origin)
	return err == nil && matched
}
