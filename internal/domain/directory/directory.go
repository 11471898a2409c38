// Package directory maps badge ids, usernames and emails to employees.
package directory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/tom/internal/domain/leaderboard"
)

// Employee is one directory entry.
type Employee struct {
	Name     string   `yaml:"name"`
	Badge    string   `yaml:"badge"`
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Aliases  []string `yaml:"aliases"`
	Excluded bool     `yaml:"excluded"`
}

type document struct {
	Employees []Employee `yaml:"employees"`
}

// Directory resolves identities against a fixed set of employees.
// It is immutable after construction and safe for concurrent use.
type Directory struct {
	byKey     map[string]leaderboard.Identity
	employees int
}

// New indexes employees by name, badge, username, email and aliases.
func New(employees []Employee) (*Directory, error) {
	d := &Directory{byKey: make(map[string]leaderboard.Identity, len(employees)*4)}
	for i, e := range employees {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: employee %d has no name", ErrInvalidEntry, i)
		}
		id := leaderboard.Identity{CanonicalName: name, Excluded: e.Excluded}
		keys := append([]string{name, e.Badge, e.Username, e.Email}, e.Aliases...)
		for _, k := range keys {
			if err := d.add(k, id); err != nil {
				return nil, err
			}
		}
		d.employees++
	}
	return d, nil
}

func (d *Directory) add(key string, id leaderboard.Identity) error {
	k := normalize(key)
	if k == "" {
		return nil
	}
	if prev, ok := d.byKey[k]; ok && prev.CanonicalName != id.CanonicalName {
		return fmt.Errorf("%w: %q maps to %q and %q", ErrConflict, key, prev.CanonicalName, id.CanonicalName)
	}
	d.byKey[k] = id
	return nil
}

// Parse reads a directory from YAML:
//
//	employees:
//	  - name: Alice Smith
//	    badge: "10442"
//	    username: asmith
//	    email: alice.smith@example.com
//	    excluded: false
func Parse(data []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}
	return New(doc.Employees)
}

// LoadFile reads and parses the directory at path.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	return Parse(data)
}

// Resolve implements leaderboard.Resolver. Unknown identities resolve to
// their trimmed selves. An unknown email falls back to its local part.
func (d *Directory) Resolve(identity string) leaderboard.Identity {
	if d == nil {
		return leaderboard.Passthrough.Resolve(identity)
	}
	k := normalize(identity)
	if id, ok := d.byKey[k]; ok {
		return id
	}
	if local, _, found := strings.Cut(k, "@"); found {
		if id, ok := d.byKey[local]; ok {
			return id
		}
	}
	return leaderboard.Passthrough.Resolve(identity)
}

// Len returns the number of employees.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return d.employees
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
