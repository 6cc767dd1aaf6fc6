// Package interactive provides the interactive command-line interface
// for avrcp-ctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rcctl/avrcp-go/pkg/peersim"
	"github.com/rcctl/avrcp-go/pkg/service"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Controller is the session surface the console drives.
type Controller interface {
	OnConnect(peer string, features wire.Features) error
	OnDisconnect(peer string) error
	State() (service.State, error)
	SendPassThrough(op wire.PassThroughOp, state wire.KeyState) error
	SendGroupNavigation(op wire.GroupNavOp, state wire.KeyState) error
	ChangePlayerAppSetting(values []wire.AttrValue) error
	GetPlayStatus() error
	SetVolume(volume uint8) error
}

// Simulator is the simulated target surface behind the "sim" commands.
type Simulator interface {
	SetPlayStatus(status wire.PlayStatus)
	SetPosition(ms uint32)
	ChangeTrack(track peersim.Track)
	SetSetting(id wire.AppAttrID, value uint8) error
	SetVolume(volume uint8)
	Volume() uint8
	PlayStatus() wire.PlayStatus
}

// Options configures a Console.
type Options struct {
	// Peer is the address of the driven target.
	Peer string

	// Features is the target's SDP feature bitmap used by "connect".
	Features wire.Features

	// Simulator enables the "sim" commands (optional).
	Simulator Simulator
}

// Console handles interactive mode for avrcp-ctl.
type Console struct {
	ctl  Controller
	opts Options
	rl   *readline.Instance
	out  io.Writer

	nextUID uint64
}

// New creates a console reading commands through readline.
func New(ctl Controller, opts Options) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "avrcp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(opts.Simulator != nil),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(ctl, opts, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(ctl Controller, opts Options, out io.Writer) *Console {
	return &Console{ctl: ctl, opts: opts, out: out, nextUID: 1000}
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log and event output.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the console should
// exit.
func (c *Console) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "play", "pause", "stop", "next", "prev", "ff", "rew", "volup", "voldown", "mute":
		c.cmdKey(keyAliases[cmd], args)

	case "key":
		c.cmdRawKey(args)

	case "group":
		c.cmdGroup(args)

	case "volume", "vol":
		c.cmdVolume(args)

	case "setting", "set":
		c.cmdSetting(args)

	case "status":
		c.report(c.ctl.GetPlayStatus())

	case "state", "s":
		c.cmdState()

	case "connect":
		c.report(c.ctl.OnConnect(c.opts.Peer, c.opts.Features))

	case "disconnect":
		c.report(c.ctl.OnDisconnect(c.opts.Peer))

	case "sim":
		c.cmdSim(args)

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
AVRCP Controller Commands:
  Playback:
    play | pause | stop | next | prev  - Press and release a panel key
    ff | rew | volup | voldown | mute  - Press and release a panel key
    key <name> [press|release]         - Send one pass-through key (e.g. key PLAY press)
    group <next|prev>                  - Group navigation

  Target:
    volume <0-127>                     - Set absolute volume
    setting <attr> <value>             - Change a player setting (repeat 2, 0x81 3)
    status                             - Request play status
    state                              - Show session state

  Connection:
    connect                            - Connect to the target
    disconnect                         - Disconnect from the target`)

	if c.opts.Simulator != nil {
		fmt.Fprintln(c.out, `
  Simulated target:
    sim play|pause|stop                - Change the target's play status
    sim track <title...>               - Start a new track
    sim pos <seconds>                  - Set the song position
    sim volume <0-127>                 - Change the target's volume
    sim setting <attr> <value>         - Change a setting on the target`)
	}

	fmt.Fprintln(c.out, `
  General:
    help                               - Show this help
    quit                               - Exit`)
}

var keyAliases = map[string]wire.PassThroughOp{
	"play":    wire.OpPlay,
	"pause":   wire.OpPause,
	"stop":    wire.OpStop,
	"next":    wire.OpForward,
	"prev":    wire.OpBackward,
	"ff":      wire.OpFastForward,
	"rew":     wire.OpRewind,
	"volup":   wire.OpVolumeUp,
	"voldown": wire.OpVolumeDown,
	"mute":    wire.OpMute,
}

// cmdKey sends a press followed by a release, or just the given state.
func (c *Console) cmdKey(op wire.PassThroughOp, args []string) {
	states := []wire.KeyState{wire.KeyPressed, wire.KeyReleased}
	if len(args) > 0 {
		st, err := parseKeyState(args[0])
		if err != nil {
			fmt.Fprintln(c.out, err)
			return
		}
		states = []wire.KeyState{st}
	}
	for _, st := range states {
		if err := c.ctl.SendPassThrough(op, st); err != nil {
			c.report(err)
			return
		}
	}
}

func (c *Console) cmdRawKey(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: key <name> [press|release]")
		return
	}
	op, ok := wire.ParsePassThroughOp(strings.ToUpper(args[0]))
	if !ok {
		fmt.Fprintf(c.out, "Unknown key: %s\n", args[0])
		return
	}
	c.cmdKey(op, args[1:])
}

func (c *Console) cmdGroup(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: group <next|prev>")
		return
	}
	var op wire.GroupNavOp
	switch strings.ToLower(args[0]) {
	case "next":
		op = wire.GroupNavNext
	case "prev", "previous":
		op = wire.GroupNavPrevious
	default:
		fmt.Fprintf(c.out, "Unknown group operation: %s\n", args[0])
		return
	}
	for _, st := range []wire.KeyState{wire.KeyPressed, wire.KeyReleased} {
		if err := c.ctl.SendGroupNavigation(op, st); err != nil {
			c.report(err)
			return
		}
	}
}

func (c *Console) cmdVolume(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: volume <0-127>")
		return
	}
	v, err := parseVolume(args[0])
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	c.report(c.ctl.SetVolume(v))
}

func (c *Console) cmdSetting(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: setting <attr> <value>")
		return
	}
	attr, value, err := parseSetting(args[0], args[1])
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	c.report(c.ctl.ChangePlayerAppSetting([]wire.AttrValue{{AttrID: attr, Value: value}}))
}

func (c *Console) cmdState() {
	st, err := c.ctl.State()
	if err != nil {
		c.report(err)
		return
	}
	if !st.Connected {
		fmt.Fprintln(c.out, "Not connected")
		return
	}

	fmt.Fprintf(c.out, "\nPeer:        %s [conn:%s]\n", st.Peer, shortID(st.ConnectionID))
	fmt.Fprintf(c.out, "Features:    %s\n", st.Features)
	fmt.Fprintf(c.out, "Phase:       %s", st.Phase)
	if st.ProcedureComplete {
		fmt.Fprint(c.out, " (complete)")
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Play status: %s", st.PlayStatus)
	if st.Polling {
		fmt.Fprint(c.out, " (polling)")
	}
	fmt.Fprintln(c.out)
	if st.TrackUID != 0 {
		fmt.Fprintf(c.out, "Track UID:   %s\n", peersim.FormatTrackUID(st.TrackUID))
	}
	if st.VolumeSubscribed {
		fmt.Fprintf(c.out, "Volume:      %d\n", st.Volume)
	}
	fmt.Fprintf(c.out, "Labels:      %d in use\n", st.LabelsInUse)
	if len(st.Events) > 0 {
		fmt.Fprintln(c.out, "Notifications:")
		for _, ev := range st.Events {
			fmt.Fprintf(c.out, "  %-28s label %-2d %s\n", ev.ID, ev.Label, ev.State)
		}
	}
}

func (c *Console) cmdSim(args []string) {
	sim := c.opts.Simulator
	if sim == nil {
		fmt.Fprintln(c.out, "No simulated target (connected to a remote target)")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: sim <play|pause|stop|track|pos|volume|setting> ...")
		return
	}

	switch strings.ToLower(args[0]) {
	case "play":
		sim.SetPlayStatus(wire.PlayStatusPlaying)
	case "pause":
		sim.SetPlayStatus(wire.PlayStatusPaused)
	case "stop":
		sim.SetPlayStatus(wire.PlayStatusStopped)

	case "track":
		title := strings.Join(args[1:], " ")
		if title == "" {
			title = fmt.Sprintf("Track %d", c.nextUID)
		}
		sim.ChangeTrack(peersim.Track{UID: c.nextUID, Title: title})
		c.nextUID++

	case "pos":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "Usage: sim pos <seconds>")
			return
		}
		secs, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid position: %s\n", args[1])
			return
		}
		sim.SetPosition(uint32(secs * 1000))

	case "volume", "vol":
		if len(args) < 2 {
			fmt.Fprintf(c.out, "Target volume: %d\n", sim.Volume())
			return
		}
		v, err := parseVolume(args[1])
		if err != nil {
			fmt.Fprintln(c.out, err)
			return
		}
		sim.SetVolume(v)

	case "setting", "set":
		if len(args) < 3 {
			fmt.Fprintln(c.out, "Usage: sim setting <attr> <value>")
			return
		}
		attr, value, err := parseSetting(args[1], args[2])
		if err != nil {
			fmt.Fprintln(c.out, err)
			return
		}
		c.report(sim.SetSetting(attr, value))

	default:
		fmt.Fprintf(c.out, "Unknown sim command: %s\n", args[0])
	}
}

// report prints err, if any.
func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func parseKeyState(s string) (wire.KeyState, error) {
	switch strings.ToLower(s) {
	case "press", "pressed", "down":
		return wire.KeyPressed, nil
	case "release", "released", "up":
		return wire.KeyReleased, nil
	default:
		return 0, fmt.Errorf("invalid key state: %s (use press or release)", s)
	}
}

func parseVolume(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil || v > uint64(wire.VolumeMask) {
		return 0, fmt.Errorf("invalid volume: %s (must be 0-127)", s)
	}
	return uint8(v), nil
}

var settingNames = map[string]wire.AppAttrID{
	"equalizer": wire.AppAttrEqualizer,
	"eq":        wire.AppAttrEqualizer,
	"repeat":    wire.AppAttrRepeat,
	"shuffle":   wire.AppAttrShuffle,
	"scan":      wire.AppAttrScan,
}

// parseSetting accepts an attribute by name or number and a numeric value.
func parseSetting(attr, value string) (wire.AppAttrID, uint8, error) {
	id, ok := settingNames[strings.ToLower(attr)]
	if !ok {
		n, err := strconv.ParseUint(attr, 0, 8)
		if err != nil || n == 0 {
			return 0, 0, fmt.Errorf("invalid setting attribute: %s", attr)
		}
		id = wire.AppAttrID(n)
	}
	v, err := strconv.ParseUint(value, 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid setting value: %s", value)
	}
	return id, uint8(v), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func completer(simulated bool) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("play"), readline.PcItem("pause"), readline.PcItem("stop"),
		readline.PcItem("next"), readline.PcItem("prev"),
		readline.PcItem("key"),
		readline.PcItem("group", readline.PcItem("next"), readline.PcItem("prev")),
		readline.PcItem("volume"),
		readline.PcItem("setting",
			readline.PcItem("repeat"), readline.PcItem("shuffle"),
			readline.PcItem("equalizer"), readline.PcItem("scan")),
		readline.PcItem("status"), readline.PcItem("state"),
		readline.PcItem("connect"), readline.PcItem("disconnect"),
		readline.PcItem("help"), readline.PcItem("quit"),
	}
	if simulated {
		items = append(items, readline.PcItem("sim",
			readline.PcItem("play"), readline.PcItem("pause"), readline.PcItem("stop"),
			readline.PcItem("track"), readline.PcItem("pos"),
			readline.PcItem("volume"), readline.PcItem("setting")))
	}
	return readline.NewPrefixCompleter(items...)
}

var (
	_ Controller = (*service.Session)(nil)
	_ Simulator  = (*peersim.Target)(nil)
)
