package command

import (
	"fmt"
	"slices"
)

// MaxParameters is the number of parameter slots in a device frame.
const MaxParameters = 4

// Catalog is a read-only registry of commands keyed by ID.
// It is safe for concurrent use because nothing mutates it after NewCatalog.
type Catalog struct {
	byID  map[int]Command
	order []int
}

// NewCatalog builds a catalog, rejecting duplicate IDs or codes and commands
// with more parameters than a frame can carry.
func NewCatalog(commands ...Command) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]Command, len(commands))}
	codes := make(map[int]int, len(commands))
	for _, cmd := range commands {
		if _, dup := c.byID[cmd.ID]; dup {
			return nil, fmt.Errorf("duplicate command id %d", cmd.ID)
		}
		if other, dup := codes[cmd.Code]; dup {
			return nil, fmt.Errorf("command %d reuses code %d of command %d", cmd.ID, cmd.Code, other)
		}
		codes[cmd.Code] = cmd.ID
		if len(cmd.Parameters) > MaxParameters {
			return nil, fmt.Errorf("command %d declares %d parameters, max %d", cmd.ID, len(cmd.Parameters), MaxParameters)
		}
		if cmd.Target != TargetCoordinator && cmd.Target != TargetNode {
			return nil, fmt.Errorf("command %d has unknown target type %q", cmd.ID, cmd.Target)
		}
		cmd.Parameters = slices.Clone(cmd.Parameters)
		c.byID[cmd.ID] = cmd
		c.order = append(c.order, cmd.ID)
	}
	return c, nil
}

// Lookup returns the command with the given id.
func (c *Catalog) Lookup(id int) (Command, bool) {
	cmd, ok := c.byID[id]
	if !ok {
		return Command{}, false
	}
	cmd.Parameters = slices.Clone(cmd.Parameters)
	return cmd, true
}

// List returns all commands in registration order.
func (c *Catalog) List() []Command {
	out := make([]Command, 0, len(c.order))
	for _, id := range c.order {
		cmd, _ := c.Lookup(id)
		out = append(out, cmd)
	}
	return out
}

// Len returns the number of commands.
func (c *Catalog) Len() int { return len(c.order) }
