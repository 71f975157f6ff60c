package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Parsers share one constraint: group and pattern order must come out
// exactly as declared in the file, because precedence follows declaration.
// Each format needs its own walk; plain struct decoding loses the order.

type tomlGroup struct {
	Timeout        string              `toml:"timeout"`
	ExecutionOrder string              `toml:"execution_order"`
	Patterns       map[string][]string `toml:"patterns"`
}

func parseTOML(raw []byte) (document, error) {
	var top map[string]toml.Primitive
	md, err := toml.Decode(string(raw), &top)
	if err != nil {
		return document{}, fmt.Errorf("Invalid TOML: %v", err)
	}

	var doc document
	groupIdx := make(map[string]int)
	groupPatterns := make(map[string]map[string][]string)

	registerGroup := func(name string) error {
		if _, ok := groupIdx[name]; ok {
			return nil
		}
		var tg tomlGroup
		if err := md.PrimitiveDecode(top[name], &tg); err != nil {
			return fmt.Errorf("Invalid TOML: '%s': %v", name, err)
		}
		if tg.Patterns == nil {
			return fmt.Errorf("Invalid TOML: group '%s' is missing 'patterns'", name)
		}
		groupIdx[name] = len(doc.groups)
		groupPatterns[name] = tg.Patterns
		doc.groups = append(doc.groups, rawGroup{
			name:    name,
			timeout: tg.Timeout,
			order:   tg.ExecutionOrder,
		})
		return nil
	}

	// The decoder's key log preserves document order; dotted keys under
	// [group.patterns] fix pattern precedence.
	for _, key := range md.Keys() {
		switch len(key) {
		case 1:
			name := key[0]
			if name == "timeout" {
				if err := md.PrimitiveDecode(top[name], &doc.timeout); err != nil {
					return document{}, errors.New("Invalid TOML: 'timeout' must be a duration string")
				}
				continue
			}
			if err := registerGroup(name); err != nil {
				return document{}, err
			}
		case 2:
			// A group introduced only by its [group.patterns] header.
			if key[1] != "patterns" {
				continue
			}
			if err := registerGroup(key[0]); err != nil {
				return document{}, err
			}
		case 3:
			name, section, pattern := key[0], key[1], key[2]
			if section != "patterns" {
				continue
			}
			idx, ok := groupIdx[name]
			if !ok {
				continue
			}
			commands, ok := groupPatterns[name][pattern]
			if !ok {
				continue
			}
			doc.groups[idx].rules = append(doc.groups[idx].rules, PatternRule{
				Pattern:  pattern,
				Commands: commands,
			})
		}
	}

	// Patterns written as inline tables may not surface in the key log;
	// fold any leftovers in, sorted for determinism.
	for name, idx := range groupIdx {
		g := &doc.groups[idx]
		pats := groupPatterns[name]
		if len(g.rules) == len(pats) {
			continue
		}
		seen := make(map[string]bool, len(g.rules))
		for _, r := range g.rules {
			seen[r.Pattern] = true
		}
		var missing []string
		for p := range pats {
			if !seen[p] {
				missing = append(missing, p)
			}
		}
		sort.Strings(missing)
		for _, p := range missing {
			g.rules = append(g.rules, PatternRule{Pattern: p, Commands: pats[p]})
		}
	}

	return doc, nil
}

func parseJSON(raw []byte) (document, error) {
	if !gjson.ValidBytes(raw) {
		return document{}, errors.New("Invalid JSON: malformed document")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return document{}, errors.New("Invalid JSON: top level must be an object")
	}
	doc, err := parseJSONObject(root)
	if err != nil {
		return document{}, fmt.Errorf("Invalid JSON: %v", err)
	}
	return doc, nil
}

func parsePackageJSON(raw []byte) (document, error) {
	if !gjson.ValidBytes(raw) {
		return document{}, errors.New("Invalid JSON in package.json: malformed document")
	}
	section := gjson.GetBytes(raw, "fast-staged")
	if !section.Exists() {
		return document{}, errors.New("No 'fast-staged' section found in package.json")
	}
	if !section.IsObject() {
		return document{}, errors.New("Invalid 'fast-staged' section: must be an object")
	}
	doc, err := parseJSONObject(section)
	if err != nil {
		return document{}, fmt.Errorf("Invalid 'fast-staged' section: %v", err)
	}
	return doc, nil
}

// parseJSONObject walks a config object with gjson.ForEach, which yields
// members in document order.
func parseJSONObject(root gjson.Result) (document, error) {
	var doc document
	var walkErr error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == "timeout" {
			if value.Type != gjson.String {
				walkErr = errors.New("'timeout' must be a duration string")
				return false
			}
			doc.timeout = value.String()
			return true
		}
		g, err := parseJSONGroup(name, value)
		if err != nil {
			walkErr = err
			return false
		}
		doc.groups = append(doc.groups, g)
		return true
	})
	if walkErr != nil {
		return document{}, walkErr
	}
	return doc, nil
}

func parseJSONGroup(name string, value gjson.Result) (rawGroup, error) {
	if !value.IsObject() {
		return rawGroup{}, fmt.Errorf("'%s' must be a group object", name)
	}

	g := rawGroup{name: name}
	seenPatterns := false
	var walkErr error
	value.ForEach(func(key, val gjson.Result) bool {
		switch key.String() {
		case "timeout":
			if val.Type != gjson.String {
				walkErr = fmt.Errorf("group '%s': 'timeout' must be a duration string", name)
				return false
			}
			g.timeout = val.String()
		case "execution_order":
			if val.Type != gjson.String {
				walkErr = fmt.Errorf("group '%s': 'execution_order' must be a string", name)
				return false
			}
			g.order = val.String()
		case "patterns":
			if !val.IsObject() {
				walkErr = fmt.Errorf("group '%s': 'patterns' must be an object", name)
				return false
			}
			seenPatterns = true
			g.rules, walkErr = parseJSONPatterns(name, val)
			if walkErr != nil {
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return rawGroup{}, walkErr
	}
	if !seenPatterns {
		return rawGroup{}, fmt.Errorf("group '%s' is missing 'patterns'", name)
	}
	return g, nil
}

func parseJSONPatterns(group string, val gjson.Result) ([]PatternRule, error) {
	var rules []PatternRule
	var walkErr error
	val.ForEach(func(pattern, commands gjson.Result) bool {
		if !commands.IsArray() {
			walkErr = fmt.Errorf("group '%s': pattern '%s' must map to an array of commands", group, pattern.String())
			return false
		}
		rule := PatternRule{Pattern: pattern.String()}
		commands.ForEach(func(_, cmd gjson.Result) bool {
			if cmd.Type != gjson.String {
				walkErr = fmt.Errorf("group '%s': pattern '%s' has a non-string command", group, pattern.String())
				return false
			}
			rule.Commands = append(rule.Commands, cmd.String())
			return true
		})
		if walkErr != nil {
			return false
		}
		rules = append(rules, rule)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return rules, nil
}

// parseYAML walks the node tree instead of unmarshalling into maps;
// mapping nodes keep their pairs in document order.
func parseYAML(raw []byte) (document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return document{}, fmt.Errorf("Invalid YAML: %v", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return document{}, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return document{}, errors.New("Invalid YAML: top level must be a mapping")
	}
	doc, err := parseYAMLMapping(mapping)
	if err != nil {
		return document{}, fmt.Errorf("Invalid YAML: %v", err)
	}
	return doc, nil
}

func parseYAMLMapping(mapping *yaml.Node) (document, error) {
	var doc document
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Value == "timeout" {
			if value.Kind != yaml.ScalarNode {
				return document{}, errors.New("'timeout' must be a duration string")
			}
			doc.timeout = value.Value
			continue
		}
		g, err := parseYAMLGroup(key.Value, value)
		if err != nil {
			return document{}, err
		}
		doc.groups = append(doc.groups, g)
	}
	return doc, nil
}

func parseYAMLGroup(name string, node *yaml.Node) (rawGroup, error) {
	if node.Kind != yaml.MappingNode {
		return rawGroup{}, fmt.Errorf("'%s' must be a group mapping", name)
	}

	g := rawGroup{name: name}
	seenPatterns := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "timeout":
			if value.Kind != yaml.ScalarNode {
				return rawGroup{}, fmt.Errorf("group '%s': 'timeout' must be a duration string", name)
			}
			g.timeout = value.Value
		case "execution_order":
			if value.Kind != yaml.ScalarNode {
				return rawGroup{}, fmt.Errorf("group '%s': 'execution_order' must be a string", name)
			}
			g.order = value.Value
		case "patterns":
			if value.Kind != yaml.MappingNode {
				return rawGroup{}, fmt.Errorf("group '%s': 'patterns' must be a mapping", name)
			}
			seenPatterns = true
			for j := 0; j+1 < len(value.Content); j += 2 {
				pat, cmds := value.Content[j], value.Content[j+1]
				if cmds.Kind != yaml.SequenceNode {
					return rawGroup{}, fmt.Errorf("group '%s': pattern '%s' must map to a list of commands", name, pat.Value)
				}
				rule := PatternRule{Pattern: pat.Value}
				for _, c := range cmds.Content {
					if c.Kind != yaml.ScalarNode {
						return rawGroup{}, fmt.Errorf("group '%s': pattern '%s' has a non-string command", name, pat.Value)
					}
					rule.Commands = append(rule.Commands, c.Value)
				}
				g.rules = append(g.rules, rule)
			}
		}
	}
	if !seenPatterns {
		return rawGroup{}, fmt.Errorf("group '%s' is missing 'patterns'", name)
	}
	return g, nil
}
