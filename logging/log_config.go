package logging

import (
	"regexp"
	"strings"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern.
// A "*" in the pattern matches any run of characters, including dots.
type LoggerPatternConfig struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Level   string `json:"level" yaml:"level"`
}

const (
	// e.g. "pa2-debug-a".
	validLoggerSectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "pa2-debug-a" or "*" or "pa2-*".
	validLoggerSectionNameWithWildcard = `(` + validLoggerSectionName + `([_-]*\*)?|\*)`
	// e.g. "calibrate.*.pivot".
	validLoggerSectionsWithWildcard = validLoggerSectionNameWithWildcard + `(\.` + validLoggerSectionNameWithWildcard + `)*`
	validLoggerName                 = `^` + validLoggerSectionsWithWildcard + `$`
)

var loggerPatternRegexp = regexp.MustCompile(validLoggerName)

// ValidatePattern reports whether pattern is a dotted logger name with optional wildcards.
func ValidatePattern(pattern string) bool {
	return loggerPatternRegexp.MatchString(pattern)
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}
