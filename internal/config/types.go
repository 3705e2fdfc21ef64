package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret is a string that never prints. Text, JSON and fmt output show
// "[REDACTED]" (or "" when unset); Value returns the real string.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// Value returns the unredacted secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

// UnmarshalText accepts the raw value; env vars and YAML both decode
// through it.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// ByteSize is a size in bytes that accepts unit suffixes in text form
// ("512KB", "256MiB", "1GB"). Decimal and binary suffixes are both
// treated as powers of 1024.
type ByteSize int64

// Byte size units.
const (
	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
	GiB ByteSize = 1 << 30
)

var byteSizeUnits = []struct {
	suffix string
	mult   ByteSize
}{
	{"gib", GiB}, {"mib", MiB}, {"kib", KiB},
	{"gb", GiB}, {"mb", MiB}, {"kb", KiB},
	{"g", GiB}, {"m", MiB}, {"k", KiB},
	{"b", 1},
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		return fmt.Errorf("empty byte size")
	}
	mult := ByteSize(1)
	for _, u := range byteSizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", text, err)
	}
	if n < 0 {
		return fmt.Errorf("byte size cannot be negative: %s", text)
	}
	*b = ByteSize(n) * mult
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(b), 10)), nil
}

// Int64 returns the size as int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
