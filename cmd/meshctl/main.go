package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/meshctl/internal/logging"
	"github.com/danmuck/meshctl/internal/radio"
	"github.com/danmuck/meshctl/internal/session"
	"github.com/danmuck/meshctl/internal/wire"
)

type options struct {
	command    string
	args       []string
	target     string
	baud       int
	configPath string
}

func main() {
	logging.Configure(logging.ProfileRuntime)

	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.target, "target", "", "device target: serial path, host[:port], or empty for auto-detect")
	flag.IntVar(&opts.baud, "baud", 0, "serial baud rate override")
	flag.StringVar(&opts.configPath, "config", "", "path to meshctl.toml")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	opts.command = args[0]
	opts.args = args[1:]
	return opts
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: meshctl [flags] <command> [args]

commands:
  info                      show the connected device
  nodes                     list known mesh nodes
  neighbors                 list nodes heard directly
  stats                     summarize mesh health
  channels                  list channel slots
  config [key]              show device settings, or one key
  set <key> <value>         write one device setting
  send <dest|bcast> <text>  send a text message and wait for the ack
  monitor                   stream envelopes until interrupted
  traceroute <dest>         show the hop path to a node
  reboot [seconds]          restart the device

flags:
`)
	flag.PrintDefaults()
}

func run(opts options) error {
	cfg := session.DefaultConfig()
	target := opts.target
	baud := 0
	if opts.configPath != "" {
		fileTarget, fileBaud, fileCfg, err := loadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = fileCfg
		if target == "" {
			target = fileTarget
		}
		baud = fileBaud
	}
	if opts.baud > 0 {
		baud = opts.baud
	}

	desc := radio.ParseTarget(target)
	if baud > 0 {
		desc.Baud = baud
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.Connect(ctx, desc, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	switch opts.command {
	case "info":
		return cmdInfo(s)
	case "nodes":
		return cmdNodes(s)
	case "neighbors":
		return cmdNeighbors(s)
	case "stats":
		return cmdStats(s)
	case "channels":
		return cmdChannels(s)
	case "config":
		return cmdConfig(ctx, s, opts.args)
	case "set":
		return cmdSet(ctx, s, opts.args)
	case "send":
		return cmdSend(ctx, s, opts.args)
	case "monitor":
		return cmdMonitor(ctx, s)
	case "traceroute":
		return cmdTraceroute(ctx, s, opts.args)
	case "reboot":
		return cmdReboot(ctx, s, opts.args)
	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
}

func cmdInfo(s *session.Session) error {
	my, ok := s.MyInfo()
	if !ok {
		return fmt.Errorf("device never reported its identity")
	}
	fmt.Printf("node      !%08x\n", my.Num)
	if len(my.DeviceID) > 0 {
		fmt.Printf("device id %x\n", my.DeviceID)
	}
	fmt.Printf("reboots   %d\n", my.RebootCount)
	fmt.Printf("nodes     %d known\n", len(s.Nodes()))
	fmt.Printf("channels  %d configured\n", len(s.Channels()))
	return nil
}

func cmdNodes(s *session.Session) error {
	nodes := s.Nodes()
	if len(nodes) == 0 {
		fmt.Println("no nodes known")
		return nil
	}
	for _, n := range nodes {
		line := fmt.Sprintf("!%08x  %-24s %-6s", n.Num, n.LongName, n.ShortName)
		if n.HasSNR {
			line += fmt.Sprintf("  snr %.1f", n.SNR)
		}
		if n.HasHops {
			line += fmt.Sprintf("  hops %d", n.HopsAway)
		}
		if n.HasPosition {
			line += fmt.Sprintf("  %.5f,%.5f",
				float64(n.Position.LatitudeI)/1e7, float64(n.Position.LongitudeI)/1e7)
		}
		fmt.Println(line)
	}
	return nil
}

func cmdNeighbors(s *session.Session) error {
	neighbors := s.Neighbors()
	if len(neighbors) == 0 {
		fmt.Println("no direct neighbors")
		return nil
	}
	for _, n := range neighbors {
		fmt.Printf("!%08x  %-24s snr %.1f\n", n.Num, n.LongName, n.SNR)
	}
	return nil
}

func cmdStats(s *session.Session) error {
	stats := s.NetworkStats()
	fmt.Printf("nodes      %d (%d active)\n", stats.TotalNodes, stats.ActiveNodes)
	fmt.Printf("neighbors  %d\n", stats.Neighbors)
	if stats.HasAverageSNR {
		fmt.Printf("avg snr    %.1f\n", stats.AverageSNR)
	}
	fmt.Printf("health     %s\n", stats.Health)
	return nil
}

func cmdChannels(s *session.Session) error {
	channels := s.Channels()
	if len(channels) == 0 {
		fmt.Println("no channels configured")
		return nil
	}
	for _, c := range channels {
		role := c.Role
		if role == "" {
			role = "-"
		}
		fmt.Printf("%d  %-16s %s\n", c.Index, c.Name, role)
	}
	return nil
}

func cmdConfig(ctx context.Context, s *session.Session, args []string) error {
	if len(args) >= 1 {
		v, err := s.GetConfigValue(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}
	all := s.Config()
	if len(all) == 0 {
		fmt.Println("no settings reported")
		return nil
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %s\n", k, all[k])
	}
	return nil
}

func cmdSet(ctx context.Context, s *session.Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <key> <value>")
	}
	return s.SetConfigValue(ctx, args[0], args[1])
}

func cmdSend(ctx context.Context, s *session.Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <dest|bcast> <text>")
	}
	dest, err := parseDest(args[0])
	if err != nil {
		return err
	}
	body := strings.Join(args[1:], " ")
	start := time.Now()
	if err := s.SendText(ctx, dest, 0, body, true); err != nil {
		return err
	}
	fmt.Printf("acknowledged in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdMonitor(ctx context.Context, s *session.Session) error {
	events, unsub := s.Subscribe()
	defer unsub()
	fmt.Println("monitoring, ctrl-c to stop")
	for {
		select {
		case env, ok := <-events:
			if !ok {
				return session.ErrDisconnected
			}
			printEnvelope(env)
		case <-ctx.Done():
			return nil
		}
	}
}

func printEnvelope(env *wire.Envelope) {
	ts := time.Now().Format("15:04:05")
	switch env.Kind {
	case wire.KindText:
		if t, err := wire.DecodeText(env); err == nil {
			fmt.Printf("%s  text  !%08x: %s\n", ts, env.From, t.Body)
			return
		}
	case wire.KindPosition:
		if p, err := wire.DecodePosition(env); err == nil {
			fmt.Printf("%s  pos   !%08x: %.5f,%.5f\n", ts, env.From,
				float64(p.LatitudeI)/1e7, float64(p.LongitudeI)/1e7)
			return
		}
	case wire.KindTelemetry:
		if tm, err := wire.DecodeTelemetry(env); err == nil {
			fmt.Printf("%s  tele  !%08x: battery %d%% %.2fV\n", ts, env.From, tm.Battery, tm.Voltage)
			return
		}
	}
	fmt.Printf("%s  %-5s !%08x\n", ts, env.Kind, env.From)
}

func cmdTraceroute(ctx context.Context, s *session.Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: traceroute <dest>")
	}
	dest, err := parseDest(args[0])
	if err != nil {
		return err
	}
	route, err := s.Traceroute(ctx, dest)
	if err != nil {
		return err
	}
	for i, hop := range route {
		fmt.Printf("%2d  !%08x\n", i+1, hop)
	}
	return nil
}

func cmdReboot(ctx context.Context, s *session.Session, args []string) error {
	seconds := uint32(5)
	if len(args) >= 1 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("parse seconds: %w", err)
		}
		seconds = uint32(v)
	}
	if err := s.Reboot(ctx, seconds); err != nil {
		return err
	}
	fmt.Printf("rebooting in %ds\n", seconds)
	return nil
}

// parseDest accepts "bcast", a !hex node id, or a decimal node number.
func parseDest(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "bcast" || raw == "broadcast" {
		return wire.Broadcast, nil
	}
	if strings.HasPrefix(raw, "!") {
		v, err := strconv.ParseUint(strings.TrimPrefix(raw, "!"), 16, 32)
		if err != nil {
			return 0, fmt.Errorf("parse node id %q: %w", raw, err)
		}
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse node number %q: %w", raw, err)
	}
	return uint32(v), nil
}
