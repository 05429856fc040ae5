package nlu

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Command is the actuator-facing command tuple a phrase resolves to.
type Command struct {
	Group string
	Name  string
}

// Catalog is the static phrase → command map, loaded once at startup.
// Insertion order is preserved: it is the tie-break for nearest-neighbour
// matches with equal scores.
type Catalog struct {
	phrases  []string
	byPhrase map[string]Command
}

// LoadCatalog reads a command map resource. JSON and YAML are supported,
// chosen by extension; both map each phrase to a [group, name] pair.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nlu: read catalog %q: %w", path, err)
	}

	var cat *Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cat, err = parseYAMLCatalog(data)
	default:
		cat, err = parseJSONCatalog(data)
	}
	if err != nil {
		return nil, fmt.Errorf("nlu: parse catalog %q: %w", path, err)
	}
	if cat.Len() == 0 {
		return nil, fmt.Errorf("nlu: catalog %q is empty", path)
	}
	return cat, nil
}

// NewCatalog builds a catalog from ordered phrase/command pairs. Intended
// for tests and embedded defaults.
func NewCatalog(pairs ...CatalogEntry) *Catalog {
	cat := &Catalog{byPhrase: make(map[string]Command, len(pairs))}
	for _, p := range pairs {
		cat.add(p.Phrase, p.Command)
	}
	return cat
}

// CatalogEntry pairs a canonical phrase with its command.
type CatalogEntry struct {
	Phrase  string
	Command Command
}

func (c *Catalog) add(phrase string, cmd Command) {
	if _, dup := c.byPhrase[phrase]; dup {
		return
	}
	c.phrases = append(c.phrases, phrase)
	c.byPhrase[phrase] = cmd
}

// Lookup returns the command mapped to an exact phrase or label.
func (c *Catalog) Lookup(phrase string) (Command, bool) {
	cmd, ok := c.byPhrase[phrase]
	return cmd, ok
}

// Phrases returns the catalog phrases in insertion order.
func (c *Catalog) Phrases() []string { return c.phrases }

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.phrases) }

// parseJSONCatalog decodes {"phrase": ["Group", "Name"], ...} preserving key
// order, which encoding/json maps would lose.
func parseJSONCatalog(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected top-level object, got %v", tok)
	}

	cat := &Catalog{byPhrase: make(map[string]Command)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		phrase, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}

		var pair []string
		if err := dec.Decode(&pair); err != nil {
			return nil, fmt.Errorf("phrase %q: %w", phrase, err)
		}
		cmd, err := commandFromPair(phrase, pair)
		if err != nil {
			return nil, err
		}
		cat.add(phrase, cmd)
	}
	return cat, nil
}

// parseYAMLCatalog decodes the same mapping from YAML via the node API,
// which preserves mapping order.
func parseYAMLCatalog(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return NewCatalog(), nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected top-level mapping, got yaml kind %d", m.Kind)
	}

	cat := &Catalog{byPhrase: make(map[string]Command)}
	for i := 0; i+1 < len(m.Content); i += 2 {
		phrase := m.Content[i].Value
		var pair []string
		if err := m.Content[i+1].Decode(&pair); err != nil {
			return nil, fmt.Errorf("phrase %q: %w", phrase, err)
		}
		cmd, err := commandFromPair(phrase, pair)
		if err != nil {
			return nil, err
		}
		cat.add(phrase, cmd)
	}
	return cat, nil
}

func commandFromPair(phrase string, pair []string) (Command, error) {
	if len(pair) != 2 {
		return Command{}, fmt.Errorf("phrase %q: expected [group, name] pair, got %d elements", phrase, len(pair))
	}
	return Command{Group: pair[0], Name: pair[1]}, nil
}
