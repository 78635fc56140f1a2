package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/host"
)

// CLI commands.
const (
	CommandInfo   = "info"
	CommandDirect = "direct"
	CommandExit   = "exit"
)

// ParseDirect splits the arguments of a direct command into the trigger id
// and its payload at the first space.
func ParseDirect(args string) (id, payload string, err error) {
	id, payload, ok := strings.Cut(args, " ")
	if !ok || id == "" {
		return "", "", errors.ErrInvalidDirect
	}
	return id, payload, nil
}

func (a *Agent) command(ctx context.Context, line string) error {
	switch {
	case line == "":
		return nil
	case line == CommandExit:
		return a.exit(ctx)
	case line == CommandInfo:
		a.info()
		a.reprompt()
		return nil
	case line == CommandDirect || strings.HasPrefix(line, CommandDirect+" "):
		err := a.direct(ctx, strings.TrimPrefix(strings.TrimPrefix(line, CommandDirect), " "))
		a.reprompt()
		return err
	default:
		fmt.Fprintf(a.console, "unknown command %q\n", line)
		a.reprompt()
		return nil
	}
}

func (a *Agent) reprompt() {
	if a.prompt {
		fmt.Fprintln(a.console, entities.Prompt)
	}
}

func (a *Agent) exit(ctx context.Context) error {
	a.logger.InfoContext(ctx, "exiting")
	if inst := a.runtime.Current(); inst != nil {
		status, err := inst.Shutdown(ctx)
		if err != nil {
			return errors.Fatal(host.ExportShutdown, err)
		}
		if status != 0 {
			a.logger.WarnContext(ctx, "bundle returned error code", "entry", host.ExportShutdown, "status", status)
		}
	}
	if a.broker != nil {
		a.broker.Disconnect()
	}
	return &errors.ExitError{Code: 0}
}

func (a *Agent) direct(ctx context.Context, args string) error {
	id, payload, err := ParseDirect(args)
	if err != nil {
		fmt.Fprintln(a.console, err)
		return nil
	}

	inst := a.provisioned()
	if inst == nil {
		a.logger.WarnContext(ctx, "direct triggers are not supported yet, no bundle loaded", "direct_id", id)
		return nil
	}

	idLen, payloadLen, err := a.encode(inst, id, payload)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to pass direct trigger to bundle", "direct_id", id, "error", err)
		return nil
	}
	status, err := inst.Entry().DirectTrigger(ctx, idLen, payloadLen)
	return a.check(ctx, host.ExportDirectTrigger, status, err)
}

func (a *Agent) encode(inst *host.Instance, topic, payload string) (uint32, uint32, error) {
	return bridge.EncodeMessage(inst.Memory(), a.runtime.Buffers(), topic, payload)
}

func (a *Agent) info() {
	inst := a.runtime.Current()
	bundleID := entities.DefaultBundleID
	if inst != nil {
		bundleID = inst.BundleID()
	}
	opts := a.cfg.CompilerOptions
	fmt.Fprintf(a.console, `    Agent Version: %s

    Device ID: %s
    Broker: %s
    Base Topic: %s
    Connected: %t

    Bundle ID: %s
    Loop Interval (ms): %d
    Trace Level: %d
    Stack Size (bytes): %d
    Bundle Path: %s
`,
		a.cfg.Version, a.cfg.Topics.DeviceID, a.cfg.Broker, a.cfg.Topics.Base, a.connected.Load(),
		bundleID, a.cfg.LoopInterval.Milliseconds(), opts.TraceLevel, opts.StackSize, a.cfg.BundlePath,
	)
}
