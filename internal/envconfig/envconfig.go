// Package envconfig resolves the engine's environment-driven settings:
// a flag-backed settings value with a validated default, adapted from
// flag registration to environment-variable resolution since this
// package is imported by the library itself and a library must not
// register global flags. Flag-based overrides, where wanted, belong
// to cmd/ instead.
package envconfig

import (
	"os"
	"strconv"

	"github.com/pghmri/mri/errs"
)

// Settings holds the engine's process-wide configuration knobs.
type Settings struct {
	TmpDir       string
	MaxOpenFiles int
	ErrorMode    errs.Mode
}

const (
	defaultTmpDir       = "/tmp"
	defaultMaxOpenFiles = 8
)

// FromEnv reads MRI_TMP_DIR, MRI_MAX_OPEN_FILES, and MRI_ERROR_MODE,
// falling back to the reference library's defaults.
func FromEnv() (Settings, error) {
	s := Settings{
		TmpDir:       defaultTmpDir,
		MaxOpenFiles: defaultMaxOpenFiles,
		ErrorMode:    errs.Report,
	}
	if v := os.Getenv("MRI_TMP_DIR"); v != "" {
		s.TmpDir = v
	}
	if v := os.Getenv("MRI_MAX_OPEN_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, errs.New(errs.KindValidation, "invalid MRI_MAX_OPEN_FILES %q", v)
		}
		s.MaxOpenFiles = n
	}
	if v := os.Getenv("MRI_ERROR_MODE"); v != "" {
		mode, err := errs.ParseMode(v)
		if err != nil {
			return s, err
		}
		s.ErrorMode = mode
	}
	return s, nil
}
