package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rosserial.go/pkg/env"
	fx "github.com/robotalks/rosserial.go/pkg/framework"
	"github.com/robotalks/rosserial.go/pkg/msgs"
	"github.com/robotalks/rosserial.go/pkg/rosserial"
)

// Shell provides ishell backed interactive shell over a rosserial node.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *NodeConn
}

// NodeConn is a running node.
type NodeConn struct {
	Node   *rosserial.Node
	Runner *fx.Runner
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// NodeFrom gets the connected node from ishell context.
func NodeFrom(c *ishell.Context) *rosserial.Node {
	if conn := ShellFrom(c).Conn; conn != nil {
		return conn.Node
	}
	return nil
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatTopic prints a topic into friendly string for display.
func FormatTopic(t rosserial.Topic) string {
	state := "pending"
	if t.Negotiated() {
		state = "negotiated"
	}
	return fmt.Sprintf("%5d %-9s %s [%s] buf=%d %s", t.ID, t.Direction, t.Name, t.MessageType, t.BufferSize, state)
}

// FormatMessage prints a message for display.
func FormatMessage(msg msgs.Message) string {
	name := reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
	return fmt.Sprintf("%s %+v", name, reflect.Indirect(reflect.ValueOf(msg)).Interface())
}

// FormatStats lists the counters as name=value, sorted by name.
func FormatStats(stats rosserial.Stats) []string {
	v := reflect.ValueOf(stats)
	lines := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		lines = append(lines, fmt.Sprintf("%s=%d", v.Type().Field(i).Name, v.Field(i).Uint()))
	}
	sort.Strings(lines)
	return lines
}

// Output prints v as JSON when requested, or the text lines otherwise.
func (s *Shell) Output(c *ishell.Context, v interface{}, lines ...string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	for _, line := range lines {
		c.Println(line)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the transport given by port and starts receiving.
// An empty port uses the configured one.
func (s *Shell) Connect(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Port = port
	}
	node, err := conf.NewNode()
	if err != nil {
		return err
	}
	s.Disconnect()
	conn := &NodeConn{Node: node, Runner: fx.NewRunner()}
	conn.Runner.Go(node)
	go func() {
		if err := conn.Runner.Wait(); err != nil {
			log.Printf("%s: %v", conf.Port, err)
		}
	}()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conf.Port))
	return nil
}

// Disconnect stops the current node.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Runner.Stop()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd opens a transport.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Connect(strings.Join(c.Args, "")); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the current transport.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustNewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
