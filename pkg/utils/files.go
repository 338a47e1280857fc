package utils

import (
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ReplaceExt swaps the extension of inPath for ext, or appends ext when
// inPath has none.
func ReplaceExt(inPath, ext string) string {
	old := filepath.Ext(inPath)
	if old == "" {
		return inPath + ext
	}
	return strings.TrimSuffix(inPath, old) + ext
}

// IsSourcePath reports whether path names a program source rather than
// assembly text.
func IsSourcePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".b", ".bf":
		return true
	}
	return false
}
