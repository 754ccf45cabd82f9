// AngelaMos | 2026
// main.go

package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carterperez-dev/arphoto/backend/internal/auth"
)

func main() {
	privatePath := flag.String("private", "keys/private.pem", "private key output path")
	publicPath := flag.String("public", "keys/public.pem", "public key output path")
	force := flag.Bool("force", false, "overwrite existing keys")
	flag.Parse()

	if err := run(*privatePath, *publicPath, *force); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(privatePath, publicPath string, force bool) error {
	if !force {
		for _, p := range []string{privatePath, publicPath} {
			_, err := os.Stat(p)
			if err == nil {
				return fmt.Errorf("%s exists, pass -force to replace it", p)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", p, err)
			}
		}
	}

	for _, p := range []string{privatePath, publicPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}

	if err := auth.GenerateKeyPair(privatePath, publicPath); err != nil {
		return err
	}

	slog.Info("session signing keys written",
		"algorithm", "ES256",
		"private", privatePath,
		"public", publicPath,
	)
	return nil
}
