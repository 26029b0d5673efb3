package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandContext holds the global flags of one invocation, so commands
// share no mutable package state
type CommandContext struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Verbose    bool
	Format     string
}

// NewCommandContext reads the persistent flags as seen by cmd
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	r := flagReader{flags: cmd.Flags()}
	cc := &CommandContext{
		ConfigPath: r.str("config"),
		LogLevel:   r.str("log-level"),
		LogFormat:  r.str("log-format"),
		Verbose:    r.boolean("verbose"),
		Format:     r.str("format"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return cc, nil
}

// flagReader keeps the first lookup error
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) str(name string) string {
	v, err := r.flags.GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) boolean(name string) bool {
	v, err := r.flags.GetBool(name)
	r.keep(err)
	return v
}

func (r *flagReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}
