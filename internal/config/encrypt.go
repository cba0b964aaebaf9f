package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rowjay/shop-backup/internal/cryptoutil"
)

// EncryptConfigFile writes an encrypted copy of a config file. Loading the
// copy requires SHOPBK_CONFIG_KEY.
func EncryptConfigFile(inputPath, outputPath, key string) error {
	if filepath.Clean(inputPath) == filepath.Clean(outputPath) {
		return fmt.Errorf("refusing to overwrite %s in place", inputPath)
	}
	plain, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return err
	}
	sealed, err := cryptoutil.EncryptConfig(plain, parsed)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, sealed, 0o600)
}
