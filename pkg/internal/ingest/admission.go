package ingest

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// CheckExtension 按扩展名（不区分大小写）准入.
func CheckExtension(name string, allowed []string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if slices.Contains(allowed, ext) {
		return nil
	}

	return &IntakeValidationError{
		FileName: name,
		Reason:   fmt.Sprintf("unsupported file type %q, allowed: %s", ext, strings.Join(allowed, ", ")),
	}
}
