package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Permission keys grantable to platform admins. Super admins hold all of
// them implicitly.
const (
	// PermissionCompanies covers company account management.
	PermissionCompanies = "companies"
	// PermissionSettings covers platform settings.
	PermissionSettings = "settings"
	// PermissionDashboard covers platform-wide aggregates.
	PermissionDashboard = "dashboard"
)

// knownPermissions indexes every grantable key.
var knownPermissions = map[string]struct{}{
	PermissionCompanies: {},
	PermissionSettings:  {},
	PermissionDashboard: {},
}

// NormalizePermissions lowercases, trims, and dedupes permission keys.
func NormalizePermissions(keys []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}

// ValidatePermissions rejects unknown keys.
func ValidatePermissions(keys []string) error {
	for _, key := range keys {
		if _, ok := knownPermissions[key]; !ok {
			return fmt.Errorf("unknown permission: %s", key)
		}
	}
	return nil
}

// MarshalPermissions encodes keys for the Permissions JSON column.
func MarshalPermissions(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(keys)
}

// ParsePermissions decodes the Permissions JSON column. Malformed data
// yields an empty set rather than an error.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var keys []string
	if errDecode := json.Unmarshal(raw, &keys); errDecode != nil {
		return []string{}
	}
	return NormalizePermissions(keys)
}

// Has reports whether the set grants the key.
func Has(raw datatypes.JSON, key string) bool {
	for _, granted := range ParsePermissions(raw) {
		if granted == key {
			return true
		}
	}
	return false
}
