package logger

import "go.uber.org/zap/zapcore"

// levelCore gates a core with its own level, ignoring the level the wrapped
// core was built with. The file sink uses it to log more or less than the
// console.
type levelCore struct {
	zapcore.Core

	enabler zapcore.LevelEnabler
}

func withLevel(core zapcore.Core, enabler zapcore.LevelEnabler) zapcore.Core {
	return &levelCore{Core: core, enabler: enabler}
}

// Enabled reports whether l passes the core's own level.
func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.enabler.Enabled(l)
}

// Level lets zapcore.LevelOf report the gate instead of the wrapped level.
func (c *levelCore) Level() zapcore.Level {
	return zapcore.LevelOf(c.enabler)
}

//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return withLevel(c.Core.With(fields), c.enabler)
}
