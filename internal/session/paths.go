package session

import (
	"strings"

	"github.com/danmuck/graphctl/internal/protocol"
)

// ValidateAssetPath requires path to sit under root with no relative segments.
func ValidateAssetPath(root, path string) error {
	if strings.TrimSpace(path) == "" {
		return protocol.Validationf("Invalid asset path: must not be empty")
	}
	if strings.Contains(path, `\`) {
		return protocol.Validationf("Invalid asset path '%s': backslashes are not allowed", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." {
			return protocol.Validationf("Invalid asset path '%s': relative segments are not allowed", path)
		}
	}
	base := strings.TrimRight(root, "/")
	if path != base && !strings.HasPrefix(path, base+"/") {
		return protocol.Validationf("Invalid asset path '%s': must start with '%s'", path, root)
	}
	return nil
}

// ValidateAssetName rejects empty names and names carrying path syntax.
func ValidateAssetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return protocol.Validationf("Invalid asset name: must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return protocol.Validationf("Invalid asset name '%s': must not contain path separators", name)
	}
	return nil
}

// ObjectPath joins a validated package path and asset name.
func ObjectPath(path, name string) string {
	return strings.TrimRight(path, "/") + "/" + name
}
