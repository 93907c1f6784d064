package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lookbusy1344/tcf-agent/agent"
	"github.com/lookbusy1344/tcf-agent/agentconfig"
	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/monitor"
	"github.com/lookbusy1344/tcf-agent/regset"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/target"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

// Version information, overridable at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to config file (default: platform config dir)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tcf-agent %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tcf-agent: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	a, svcs := buildAgent(cfg, log)

	listener, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		log.Error("listen", "addr", cfg.Server.ListenAddress, "err", err)
		os.Exit(1)
	}

	mon := &http.Server{Addr: cfg.Server.MonitorAddress, Handler: monitor.New(a.Broadcaster, log)}
	go func() {
		if err := mon.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("monitor server", "err", err)
		}
	}()

	go runWaitLoop(a, log)

	log.Info("tcf-agent listening", "addr", cfg.Server.ListenAddress, "monitor", cfg.Server.MonitorAddress)
	go acceptLoop(listener, a, svcs, log)

	waitForShutdown(listener, mon, log)
}

func loadConfig(path string) (*agentconfig.Config, error) {
	if path != "" {
		return agentconfig.LoadFrom(path)
	}
	return agentconfig.Load()
}

func newLogger(cfg *agentconfig.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.Logging.Path != "" {
		if f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			out = f
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// serviceSet is every TCF service facade shared across connections; the
// facades are stateless wrappers over the agent's registries, so one
// instance of each is reused by every channel.
type serviceSet struct {
	breakpoints *services.Breakpoints
	registers   *services.Registers
	processes   *services.Processes
	runControl  *services.RunControl
}

// buildAgent wires the context store, register file, break-instruction
// table, and breakpoint registry/replanter into one running agent (spec
// §5: the composition root), plus the service facades bound to it.
func buildAgent(cfg *agentconfig.Config, log *slog.Logger) (*agent.Agent, *serviceSet) {
	regsFile := regset.BuildARM(regset.Features{
		VFP:        cfg.Registers.EnableVFP,
		VFPDoubles: cfg.Registers.VFPDoubles,
		VFPQuads:   cfg.Registers.VFPQuads,
	})

	mem := &targetMemIO{}
	a := agent.New(mem, regsFile)

	svcs := &serviceSet{
		breakpoints: &services.Breakpoints{Registry: a.Registry, Replant: a.RequestReplant, Events: a.Broadcaster},
		registers:   &services.Registers{Store: a.Store, File: a.RegsFile},
		processes:   &services.Processes{Store: a.Store},
		runControl:  &services.RunControl{Store: a.Store, Resumer: a},
	}
	a.BindEmitter(svcs.breakpoints)

	return a, svcs
}

// targetMemIO implements breakpoint.MemIO against whichever thread
// currently owns a given memory space, resolved from the ctx.Context
// passed to ReadMem/WriteMem (spec §4.E "Transparent memory I/O").
type targetMemIO struct{}

func (m *targetMemIO) ReadMem(owner *ctx.Context, addr uint64, buf []byte) error {
	return (&target.Thread{Tgid: owner.Pid, Tid: owner.Tid}).ReadMem(addr, buf)
}

func (m *targetMemIO) WriteMem(owner *ctx.Context, addr uint64, buf []byte) error {
	return (&target.Thread{Tgid: owner.Pid, Tid: owner.Tid}).WriteMem(addr, buf)
}

var _ breakpoint.MemIO = (*targetMemIO)(nil)

func runWaitLoop(a *agent.Agent, log *slog.Logger) {
	listener := ctx.NewListener(a.Store, a.Hooks())
	if err := a.PumpWait(listener, a.RequestReplant); err != nil {
		log.Error("wait loop exited", "err", err)
	}
}

func acceptLoop(ln net.Listener, a *agent.Agent, svcs *serviceSet, log *slog.Logger) {
	var nextID uint64
	var mu sync.Mutex

	handlers := map[string]agent.Handler{
		"Registers":  svcs.registers,
		"Processes":  svcs.processes,
		"RunControl": svcs.runControl,
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Info("accept loop stopped", "err", err)
			return
		}

		mu.Lock()
		nextID++
		id := fmt.Sprintf("C%d", nextID)
		mu.Unlock()

		var ch *agent.Channel
		ch = agent.NewChannel(id, conn, handlers, channelBreakpoints{svcs.breakpoints}, func(closed string) {
			svcs.breakpoints.ChannelClosed(closed)
			a.Broadcaster.Unregister(ch)
		}, log)
		a.Broadcaster.Register(ch)
		go ch.Run()
	}
}

// channelBreakpoints adapts services.Breakpoints.Handle's (channel,
// message) signature to agent's channelHandler shape, needed since
// services.Breakpoints additionally scopes refs by channel id (spec
// §4.F).
type channelBreakpoints struct {
	svc *services.Breakpoints
}

func (c channelBreakpoints) Handle(channel string, m tcf.Message) ([]any, error) {
	return c.svc.Handle(channel, m)
}

func waitForShutdown(ln net.Listener, mon *http.Server, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	_ = ln.Close()
	shutdownCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = mon.Shutdown(shutdownCtx)
}
