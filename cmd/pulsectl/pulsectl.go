// Program pulsectl is a command-line utility for driving a Context against
// a native audio daemon, in the spirit of the chirp command's pack/unpack
// utilities for chirp peers.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creachadair/command"
	"github.com/nongcunshaoye/pulseaudio"
)

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: "Utilities for driving a client session against a native audio daemon.",
		Commands: []*command.C{
			{
				Name:  "connect",
				Usage: "[server]",
				Help:  "Connect to a daemon and report state transitions until Ready or Failed.",
				Run:   runConnect,
			},
			{
				Name:  "exit-daemon",
				Usage: "[server]",
				Help:  "Connect to a daemon, ask it to exit, and disconnect.",
				Run:   runExitDaemon,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func serverArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runConnect(env *command.Env) error {
	done := make(chan struct{})
	c := pulseaudio.New(nil, "pulsectl")
	c.SetStateCallback(func(c *pulseaudio.Context) {
		st := c.State()
		fmt.Fprintf(os.Stderr, "state: %v\n", st)
		if st == pulseaudio.Ready || st.Terminal() {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	if err := c.Connect(context.Background(), serverArg(env.Args)); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		c.Disconnect()
		return fmt.Errorf("connect: timed out waiting for Ready or Failed")
	}

	if c.State() == pulseaudio.Failed {
		return fmt.Errorf("connect: failed: %v", c.Errno())
	}
	c.Disconnect()
	return nil
}

func runExitDaemon(env *command.Env) error {
	ready := make(chan struct{})
	done := make(chan struct{})
	c := pulseaudio.New(nil, "pulsectl")
	c.SetStateCallback(func(c *pulseaudio.Context) {
		switch c.State() {
		case pulseaudio.Ready:
			close(ready)
		case pulseaudio.Failed, pulseaudio.Terminated:
			select {
			case <-ready:
			default:
				close(ready)
			}
			close(done)
		}
	})

	if err := c.Connect(context.Background(), serverArg(env.Args)); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(30 * time.Second):
		c.Disconnect()
		return fmt.Errorf("exit-daemon: timed out waiting to become ready")
	}
	if c.State() != pulseaudio.Ready {
		return fmt.Errorf("exit-daemon: failed to connect: %v", c.Errno())
	}

	if err := c.ExitDaemon(); err != nil {
		return fmt.Errorf("exit-daemon: %w", err)
	}
	c.Disconnect()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	return nil
}
