// Command optoken issues operator token accepted by the wallet service
//
//	optoken --subject alice --ttl 30m
//
// Secret key is read from --secret-key, SECRET_KEY or .env in working directory.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/gizmocoin/internal/service/policy"
)

func main() {
	if err := run(os.Stdout, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "can't issue operator token: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, getenv func(string) string, getwd func() (string, error), args []string) error {
	secretKey, err := envSecretKey(getenv, getwd)
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("optoken", pflag.ContinueOnError)
	fs.StringVarP(&secretKey, "secret-key", "s", secretKey, "Secret key the service signs tokens with")
	subject := fs.String("subject", "", "Operator name written to token subject")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subject == "" {
		return errors.New("subject is required")
	}
	if *ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", *ttl)
	}

	issuer, err := policy.NewToken(policy.TokenConfig{SecretKey: secretKey, TTL: *ttl})
	if err != nil {
		return err
	}

	token, expiresAt, err := issuer.Issue(*subject)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n# expires at %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}

// SECRET_KEY from environment, falling back to .env file
func envSecretKey(getenv func(string) string, getwd func() (string, error)) (string, error) {
	if key := getenv("SECRET_KEY"); key != "" {
		return key, nil
	}

	wd, err := getwd()
	if err != nil {
		return "", err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))
	switch {
	case err == nil:
		return envMap["SECRET_KEY"], nil
	case errors.Is(err, os.ErrNotExist):
		return "", nil
	default:
		return "", err
	}
}
