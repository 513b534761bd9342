package pgsqldb

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// presentValue converts a driver value into something encoding/json renders
// the way psql would print it. Truncation and sanitization have already run
// on raw strings; presentation never shortens text.
func presentValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return presentFloat(float64(val), val)
	case float64:
		return presentFloat(val, val)
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		// bytea, xml
		return base64.StdEncoding.EncodeToString(val)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		switch val.InfinityModifier {
		case pgtype.Infinity:
			return "Infinity"
		case pgtype.NegativeInfinity:
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Range[any]:
		return presentRange(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = presentValue(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = presentValue(v)
		}
		return result
	case driver.Valuer:
		// pgtype geometry, interval, time and bits values render their
		// text form through Value.
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprint(val)
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Sprint(dv)
		}
		return presentValue(dv)
	case fmt.Stringer:
		// netip.Prefix, net.HardwareAddr, uuid.UUID
		return val.String()
	default:
		return val
	}
}

func presentFloat(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return orig
}

func presentRange(r pgtype.Range[any]) any {
	if !r.Valid {
		return nil
	}
	if r.LowerType == pgtype.Empty {
		return "empty"
	}
	var sb strings.Builder
	if r.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if r.LowerType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", presentValue(r.Lower))
	}
	sb.WriteByte(',')
	if r.UpperType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", presentValue(r.Upper))
	}
	if r.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

// cellText renders a value for tab-separated sample rows.
func cellText(v any) string {
	switch val := presentValue(v).(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
