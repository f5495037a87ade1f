package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Console lines carry local wall-clock time with millisecond precision so
// ffmpeg phases that finish within the same second stay ordered.
const consoleTimeLayout = "2006-01-02 15:04:05.000"

func appendTime(buf *bytes.Buffer, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.Write(ts.Local().AppendFormat(buf.AvailableBuffer(), consoleTimeLayout))
}

// plainString renders v without quoting. Errors render as their message.
func plainString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() != slog.KindAny {
		return v.String()
	}
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// appendValue writes v in logfmt style. Strings are quoted only when they
// would otherwise be ambiguous to a key=value reader.
func appendValue(buf *bytes.Buffer, v slog.Value) {
	v = v.Resolve()
	scratch := buf.AvailableBuffer()
	switch v.Kind() {
	case slog.KindBool:
		buf.Write(strconv.AppendBool(scratch, v.Bool()))
	case slog.KindInt64:
		buf.Write(strconv.AppendInt(scratch, v.Int64(), 10))
	case slog.KindUint64:
		buf.Write(strconv.AppendUint(scratch, v.Uint64(), 10))
	case slog.KindFloat64:
		buf.Write(strconv.AppendFloat(scratch, v.Float64(), 'f', -1, 64))
	case slog.KindDuration:
		buf.WriteString(roundDuration(v.Duration()).String())
	case slog.KindTime:
		buf.WriteByte('"')
		appendTime(buf, v.Time())
		buf.WriteByte('"')
	default:
		s := plainString(v)
		if bareSafe(s) {
			buf.WriteString(s)
			return
		}
		buf.Write(strconv.AppendQuote(scratch, s))
	}
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Microsecond)
	default:
		return d
	}
}

func bareSafe(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c <= ' ', c == '=', c == '"', c == 0x7f:
			return false
		}
	}
	return true
}
