// Package bearersecret generates signing secrets for showcase bearer tokens.
package bearersecret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/showcase/internal/platform/config"
)

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// minBytes is the HMAC key length matching each digest size.
var minBytes = map[string]int{
	"HS256": 32,
	"HS384": 48,
	"HS512": 64,
}

// Config holds configuration for secret generation.
type Config struct {
	Algorithm string
	Bytes     int
	Encoding  string
}

// ParseConfig parses flags into a Config. Bytes defaults to the digest size
// of Algorithm.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Algorithm: "HS256", Encoding: EncodingHex}
	fs.StringVar(&cfg.Algorithm, "alg", cfg.Algorithm, "token signing algorithm (HS256, HS384, HS512)")
	fs.IntVar(&cfg.Bytes, "bytes", 0, "number of random bytes (default: digest size)")
	fs.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "output encoding (hex or base64)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Algorithm = strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	return cfg, nil
}

// Run generates the secret and writes env assignments to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	floor, ok := minBytes[cfg.Algorithm]
	if !ok {
		return fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
	size := cfg.Bytes
	if size == 0 {
		size = floor
	}
	if size < floor {
		return fmt.Errorf("%s needs at least %d bytes, got %d", cfg.Algorithm, floor, size)
	}
	if out == nil {
		return fmt.Errorf("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}

	var secret string
	switch cfg.Encoding {
	case EncodingHex:
		secret = hex.EncodeToString(buf)
	case EncodingBase64:
		secret = base64.RawURLEncoding.EncodeToString(buf)
	default:
		return fmt.Errorf("unsupported encoding %q", cfg.Encoding)
	}

	_, err := fmt.Fprintf(out, "%sJWT_SECRET_KEY=%s\n%sJWT_ALGORITHM=%s\n", config.EnvPrefix, secret, config.EnvPrefix, cfg.Algorithm)
	return err
}
