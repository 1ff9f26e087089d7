// File: internal/observability/sanitizing_core.go
package observability

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/formpilot/internal/sanitize"
)

// sanitizingCore wraps another core and masks registered secrets in
// messages and field values before they reach the underlying encoder.
// It sits above the tee so every sink, console and file alike, sees
// only masked output.
type sanitizingCore struct {
	zapcore.Core
	s *sanitize.Sanitizer
}

// NewSanitizingCore wraps core so that all entries written through it
// are passed through s first.
func NewSanitizingCore(core zapcore.Core, s *sanitize.Sanitizer) zapcore.Core {
	return &sanitizingCore{Core: core, s: s}
}

func (c *sanitizingCore) With(fields []zapcore.Field) zapcore.Core {
	return &sanitizingCore{Core: c.Core.With(c.maskFields(fields)), s: c.s}
}

func (c *sanitizingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sanitizingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.s.Mask(ent.Message)
	return c.Core.Write(ent, c.maskFields(fields))
}

// maskFields returns a masked copy of fields. String-ish field types
// are masked in place; error fields whose message contains a secret
// are flattened to a masked string field, trading the error's type
// information for the guarantee that its text is clean.
func (c *sanitizingCore) maskFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, len(fields))
	copy(out, fields)
	for i, f := range out {
		switch f.Type {
		case zapcore.StringType:
			out[i].String = c.s.Mask(f.String)
		case zapcore.ByteStringType:
			if b, ok := f.Interface.([]byte); ok && c.s.Contains(string(b)) {
				out[i].Interface = []byte(c.s.Mask(string(b)))
			}
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && c.s.Contains(err.Error()) {
				out[i] = zapcore.Field{
					Key:    f.Key,
					Type:   zapcore.StringType,
					String: c.s.Mask(err.Error()),
				}
			}
		case zapcore.StringerType:
			if st, ok := f.Interface.(fmt.Stringer); ok && c.s.Contains(st.String()) {
				out[i] = zapcore.Field{
					Key:    f.Key,
					Type:   zapcore.StringType,
					String: c.s.Mask(st.String()),
				}
			}
		}
	}
	return out
}
