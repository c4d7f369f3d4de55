// Package console provides the interactive command console of the device.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUsage indicates wrong argument count, usage has been printed.
	ErrUsage = errors.New("usage error")
	// ErrUnknownCommand indicates the command isn't in the table.
	ErrUnknownCommand = errors.New("unknown command")
)

// HandlerFunc executes a command writing output to out.
type HandlerFunc func(ctx context.Context, out io.Writer, args []string) error

// Command is an entry of the command table.
type Command struct {
	Name string
	// Usage is the argument synopsis, empty for none.
	Usage string
	Help  string
	// MaxArgs limits arguments, negative for unlimited.
	MaxArgs int
	Run     HandlerFunc
}

// Table maps command names to handlers.
type Table struct {
	cmds  map[string]*Command
	names []string
}

// NewTable creates a Table with commands.
func NewTable(cmds ...Command) *Table {
	return (&Table{cmds: make(map[string]*Command)}).Add(cmds...)
}

// Add adds commands, a later command replaces the one with the same name.
func (t *Table) Add(cmds ...Command) *Table {
	for i := range cmds {
		cmd := cmds[i]
		if _, exists := t.cmds[cmd.Name]; !exists {
			t.names = append(t.names, cmd.Name)
		}
		t.cmds[cmd.Name] = &cmd
	}
	return t
}

// Lookup finds a command by name.
func (t *Table) Lookup(name string) *Command {
	return t.cmds[name]
}

// Names lists command names in the order they were added.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Exec runs the named command. Unknown commands print "name?" and
// wrong argument counts print the usage, neither touches any state.
func (t *Table) Exec(ctx context.Context, out io.Writer, name string, args []string) error {
	cmd := t.cmds[name]
	if cmd == nil {
		fmt.Fprintf(out, "%s?\r\n", name)
		return ErrUnknownCommand
	}
	if cmd.MaxArgs >= 0 && len(args) > cmd.MaxArgs {
		fmt.Fprintf(out, "Usage: %s\r\n", cmd.Synopsis())
		return ErrUsage
	}
	return cmd.Run(ctx, out, args)
}

// Synopsis is the command name followed by its usage.
func (c *Command) Synopsis() string {
	if c.Usage == "" {
		return c.Name
	}
	return c.Name + " " + c.Usage
}
