package config

import (
	"github.com/pelletier/go-toml/v2/unstable"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Command is a named shell command line from the config.
type Command struct {
	Name string
	Line string
}

// Commands is an ordered command table.
type Commands []Command

// Names lists command names in order.
func (c Commands) Names() []string {
	names := make([]string, len(c))
	for i, cmd := range c {
		names[i] = cmd.Name
	}
	return names
}

// UnmarshalYAML accepts a mapping of name to command, or a sequence of
// single-entry mappings. Both keep document order.
func (c *Commands) UnmarshalYAML(node *yaml.Node) error {
	var out Commands
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			cmd, err := decodeCommand(node.Content[i], node.Content[i+1])
			if err != nil {
				return err
			}
			out = append(out, cmd)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
				return errors.Errorf("line %d: each command must be a single name: command entry", item.Line)
			}
			cmd, err := decodeCommand(item.Content[0], item.Content[1])
			if err != nil {
				return err
			}
			out = append(out, cmd)
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return errors.Errorf("line %d: commands must be a mapping", node.Line)
		}
	default:
		return errors.Errorf("line %d: commands must be a mapping", node.Line)
	}
	*c = out
	return nil
}

func decodeCommand(key, value *yaml.Node) (Command, error) {
	var cmd Command
	if err := key.Decode(&cmd.Name); err != nil {
		return cmd, errors.Wrapf(err, "line %d: invalid command name", key.Line)
	}
	if err := value.Decode(&cmd.Line); err != nil {
		return cmd, errors.Wrapf(err, "line %d: command %q must be a string", value.Line, cmd.Name)
	}
	return cmd, nil
}

// MarshalYAML writes the table back as an ordered mapping.
func (c Commands) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, cmd := range c {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: cmd.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: cmd.Line})
	}
	return node, nil
}

// orderedCommands builds Commands from a decoded TOML table, using the key
// order recorded by tomlKeyOrder. Every decoded key must have been seen by
// the scan.
func orderedCommands(section string, table map[string]string, order []string) (Commands, error) {
	if len(table) == 0 {
		return nil, nil
	}
	out := make(Commands, 0, len(table))
	seen := make(map[string]bool, len(table))
	for _, name := range order {
		if line, ok := table[name]; ok && !seen[name] {
			out = append(out, Command{Name: name, Line: line})
			seen[name] = true
		}
	}
	if len(out) != len(table) {
		for name := range table {
			if !seen[name] {
				return nil, errors.Errorf("%s: cannot determine the position of command %q", section, name)
			}
		}
	}
	return out, nil
}

// tomlKeyOrder scans a TOML document and returns, for each requested table,
// the keys in the order they were written.
func tomlKeyOrder(data []byte, tables ...string) (map[string][]string, error) {
	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}
	order := make(map[string][]string, len(tables))

	var p unstable.Parser
	p.Reset(data)
	var current []string
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			current = keyParts(expr.Key())
		case unstable.KeyValue:
			full := append(append([]string(nil), current...), keyParts(expr.Key())...)
			switch {
			case len(full) == 2 && wanted[full[0]]:
				order[full[0]] = append(order[full[0]], full[1])
			case len(full) == 1 && wanted[full[0]] && expr.Value().Kind == unstable.InlineTable:
				// commands = { a = "...", b = "..." }
				it := expr.Value().Children()
				for it.Next() {
					if key := keyParts(it.Node().Key()); len(key) == 1 {
						order[full[0]] = append(order[full[0]], key[0])
					}
				}
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to scan TOML")
	}
	return order, nil
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}
