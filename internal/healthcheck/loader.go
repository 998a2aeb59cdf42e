package healthcheck

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"crmcheck/internal/template"
	"crmcheck/pkg/logging"
)

// Placeholders available to custom suite endpoints and bodies.
const (
	VarSuffix  = "suffix"
	VarToday   = "today"
	VarFirstID = "firstId"
	VarLastID  = "lastId"
)

var suiteVars = []string{VarSuffix, VarToday, VarFirstID, VarLastID}

// CustomSuite is a user-declared list of test cases loaded from YAML.
//
//	name: escrow-smoke
//	entity: escrows
//	tests:
//	  - name: Create Draft
//	    category: Critical
//	    method: POST
//	    endpoint: /escrows
//	    body: {propertyAddress: "1 Draft Way"}
//	    creates: true
//	  - name: Fetch Draft
//	    endpoint: /escrows/{{ lastId }}
//
// Endpoints and bodies may use {{ suffix }}, {{ today }}, {{ firstId }} and
// {{ lastId }}; the ids refer to records created earlier in the same suite.
type CustomSuite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Entity names the built-in entity whose cleanup applies to created records.
	Entity string     `yaml:"entity,omitempty"`
	Tests  []TestCase `yaml:"tests"`
}

// LoadCustomSuites loads every YAML file under path, or path itself when it
// is a file. Suites are returned sorted by file path.
func LoadCustomSuites(path string) ([]CustomSuite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("custom suite path %s: %w", path, err)
	}
	if !info.IsDir() {
		s, err := loadCustomSuite(path)
		if err != nil {
			return nil, err
		}
		return []CustomSuite{s}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAMLFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", path, err)
	}
	sort.Strings(files)

	suites := make([]CustomSuite, 0, len(files))
	for _, f := range files {
		s, err := loadCustomSuite(f)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	logging.Debug("Orchestrator", "loaded %d custom suites from %s", len(suites), path)
	return suites, nil
}

func loadCustomSuite(path string) (CustomSuite, error) {
	var s CustomSuite
	content, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &s); err != nil {
		return s, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := validateCustomSuite(&s); err != nil {
		return s, fmt.Errorf("invalid suite in %s: %w", path, err)
	}
	return s, nil
}

func validateCustomSuite(s *CustomSuite) error {
	if len(s.Tests) == 0 {
		return fmt.Errorf("suite must have at least one test")
	}
	if s.Entity != "" {
		if _, err := LookupEntity(s.Entity); err != nil {
			return err
		}
	}
	for i := range s.Tests {
		tc := &s.Tests[i]
		if err := validateCase(tc); err != nil {
			return fmt.Errorf("test %d: %w", i+1, err)
		}
		if tc.Creates && s.Entity == "" {
			return fmt.Errorf("test %d creates records but the suite declares no entity", i+1)
		}
	}
	return nil
}

func validateCase(tc *TestCase) error {
	if strings.TrimSpace(tc.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	tc.Method = strings.ToUpper(tc.Method)
	switch tc.Method {
	case "":
		tc.Method = http.MethodGet
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", tc.Method)
	}
	if tc.Category == "" {
		tc.Category = CategoryCritical
	}
	if !knownCategory(tc.Category) {
		return fmt.Errorf("unknown category %q", tc.Category)
	}
	if tc.Category == CategoryRealtime {
		return fmt.Errorf("realtime tests cannot be declared in custom suites")
	}
	for _, name := range template.Variables([]any{tc.Endpoint, tc.Body}) {
		if !slices.Contains(suiteVars, name) {
			return fmt.Errorf("unknown placeholder {{ %s }}", name)
		}
	}
	switch tc.Policy {
	case "", PolicyPayloadSuccess, PolicyExpectRejection, PolicyExpectNotFound, PolicyLatency:
	default:
		return fmt.Errorf("unknown policy %q", tc.Policy)
	}
	return nil
}

func knownCategory(c Category) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
