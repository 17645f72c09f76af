// Package registry holds the permission catalog: the closed set of capability
// keys the suite understands. The built-in definitions ship as a versioned
// JSON file embedded in the binary; the seeder upserts them into the database
// and the in-process Registry serves cached reads to the evaluator.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

//go:embed defs/catalog.json
var rawCatalog []byte

// CatalogPermission is one built-in permission definition. Module, resource
// and action derive from the key segments.
type CatalogPermission struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// CatalogRole is one built-in system role definition, upserted with a NULL
// organization so every tenant sees it.
type CatalogRole struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Module      string   `json:"module"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Catalog is the parsed definition file.
type Catalog struct {
	Version     int                 `json:"version"`
	Permissions []CatalogPermission `json:"permissions"`
	Roles       []CatalogRole       `json:"roles"`
}

// BuiltinCatalog parses and validates the embedded definitions. Called once
// at startup; a malformed catalog is a build defect, not a runtime state.
func BuiltinCatalog() (Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(rawCatalog, &cat); err != nil {
		return Catalog{}, fmt.Errorf("registry: parse catalog: %w", err)
	}
	known := make(map[string]struct{}, len(cat.Permissions))
	for _, p := range cat.Permissions {
		if _, _, _, err := SplitKey(p.Key); err != nil {
			return Catalog{}, fmt.Errorf("registry: catalog permission %q: %w", p.Key, err)
		}
		if _, dup := known[p.Key]; dup {
			return Catalog{}, fmt.Errorf("registry: catalog permission %q duplicated", p.Key)
		}
		known[p.Key] = struct{}{}
	}
	for _, r := range cat.Roles {
		if _, err := rbac.ParseModule(r.Module); err != nil {
			return Catalog{}, fmt.Errorf("registry: catalog role %q: module %q: %w", r.Slug, r.Module, err)
		}
		for _, key := range r.Permissions {
			if key == rbac.WildcardKey {
				continue
			}
			if _, ok := known[key]; !ok {
				return Catalog{}, fmt.Errorf("registry: catalog role %q references unknown key %q", r.Slug, key)
			}
		}
	}
	return cat, nil
}

// SplitKey decomposes a dot-segmented permission key into module, resource
// and action. Keys use at least three segments; extra segments fold into the
// resource part.
func SplitKey(key string) (module rbac.Module, resource, action string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("key %q is not <module>.<resource>.<action>", key)
	}
	module, err = rbac.ParseModule(parts[0])
	if err != nil {
		return "", "", "", err
	}
	resource = strings.Join(parts[1:len(parts)-1], ".")
	action = parts[len(parts)-1]
	if resource == "" || action == "" {
		return "", "", "", fmt.Errorf("key %q has empty segments", key)
	}
	return module, resource, action, nil
}
