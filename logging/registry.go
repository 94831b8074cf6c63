package logging

import (
	"fmt"
	"regexp"
	"sync"
)

// Registry tracks named loggers so their levels can be set from pattern configs.
type Registry struct {
	mu        sync.RWMutex
	loggers   map[string]Logger
	logConfig []LoggerPatternConfig
	// defaultLevel is applied to loggers no pattern matches.
	defaultLevel Level
}

// NewRegistry returns an empty registry whose unmatched loggers run at defaultLevel.
func NewRegistry(defaultLevel Level) *Registry {
	return &Registry{
		loggers:      make(map[string]Logger),
		defaultLevel: defaultLevel,
	}
}

// LoggerNamed returns the logger registered under name.
func (lr *Registry) LoggerNamed(name string) (logger Logger, ok bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok = lr.loggers[name]
	return
}

// UpdateLoggerLevel sets the level of the named logger.
func (lr *Registry) UpdateLoggerLevel(name string, level Level) error {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	if !ok {
		return fmt.Errorf("logger named %s not recognized", name)
	}
	logger.SetLevel(level)
	return nil
}

// UpdateConfig replaces the pattern config and re-levels every registered logger. Later
// patterns take precedence over earlier ones. Invalid patterns are reported to errorLogger
// and skipped.
func (lr *Registry) UpdateConfig(logConfig []LoggerPatternConfig, errorLogger Logger) error {
	valid := make([]LoggerPatternConfig, 0, len(logConfig))
	for _, lpc := range logConfig {
		if !ValidatePattern(lpc.Pattern) {
			errorLogger.Warnw("failed to validate a pattern", "pattern", lpc.Pattern)
			continue
		}
		if _, err := LevelFromString(lpc.Level); err != nil {
			return err
		}
		valid = append(valid, lpc)
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.logConfig = valid
	for name, logger := range lr.loggers {
		level, err := lr.levelFor(name)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	return nil
}

// GetOrRegister returns the logger already registered under name, or registers logger and
// levels it according to the current patterns. Concurrent callers for the same name all get
// the winner's logger.
func (lr *Registry) GetOrRegister(name string, logger Logger) Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if existingLogger, ok := lr.loggers[name]; ok {
		return existingLogger
	}

	lr.loggers[name] = logger
	if level, err := lr.levelFor(name); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// levelFor must be called with mu held.
func (lr *Registry) levelFor(name string) (Level, error) {
	level := lr.defaultLevel
	for _, lpc := range lr.logConfig {
		r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return level, err
		}
		if r.MatchString(name) {
			if level, err = LevelFromString(lpc.Level); err != nil {
				return level, err
			}
		}
	}
	return level, nil
}

// RegisteredLoggerNames returns the names of all registered loggers.
func (lr *Registry) RegisteredLoggerNames() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	registeredNames := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		registeredNames = append(registeredNames, name)
	}
	return registeredNames
}
