package topics

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rosserial.go/pkg/cli/sh"
	"github.com/robotalks/rosserial.go/pkg/msgs"
)

var (
	// PublishCmd publishes a std_msgs/String.
	PublishCmd = ishell.Cmd{
		Name:    "publish",
		Aliases: []string{"pub", "p"},
		Help:    "TOPIC TEXT...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("topic expected"))
				return
			}
			s := sh.ShellFrom(c)
			msg := msgs.NewString(strings.Join(c.Args[1:], " "))
			if err := sh.NodeFrom(c).Publish(c.Args[0], msg, s.Config.BufferSize); err != nil {
				c.Err(err)
			}
		}),
	}

	// SubscribeCmd subscribes a topic and prints received messages.
	SubscribeCmd = ishell.Cmd{
		Name:    "subscribe",
		Aliases: []string{"sub", "s"},
		Help:    "TOPIC [TYPE]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("topic expected"))
				return
			}
			typeName := msgs.StringType.Name()
			if len(c.Args) > 1 {
				typeName = c.Args[1]
			}
			typ, ok := msgs.LookupType(typeName)
			if !ok {
				c.Err(fmt.Errorf("unknown message type %s", typeName))
				return
			}
			s, topic := sh.ShellFrom(c), c.Args[0]
			err := sh.NodeFrom(c).Subscribe(topic, typ, func(msg msgs.Message) {
				s.Shell.Println(topic + ": " + sh.FormatMessage(msg))
			}, s.Config.BufferSize)
			if err != nil {
				c.Err(err)
			}
		}),
	}

	// TopicsCmd lists topics.
	TopicsCmd = ishell.Cmd{
		Name:    "topics",
		Aliases: []string{"t"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			topics := sh.NodeFrom(c).Topics()
			lines := make([]string, 0, len(topics))
			for _, t := range topics {
				lines = append(lines, sh.FormatTopic(t))
			}
			if len(lines) == 0 {
				lines = append(lines, "No topics")
			}
			infos := make([]*msgs.TopicInfo, 0, len(topics))
			for _, t := range topics {
				infos = append(infos, t.Info())
			}
			sh.ShellFrom(c).Output(c, infos, lines...)
		}),
	}

	// StatsCmd prints node counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			stats := sh.NodeFrom(c).Stats()
			sh.ShellFrom(c).Output(c, stats, sh.FormatStats(stats)...)
		}),
	}

	// TypesCmd lists known message types.
	TypesCmd = ishell.Cmd{
		Name: "types",
		Help: "",
		Func: func(c *ishell.Context) {
			names := msgs.TypeNames()
			sh.ShellFrom(c).Output(c, names, names...)
		},
	}
)

func init() {
	sh.AddCmds(
		&PublishCmd,
		&SubscribeCmd,
		&TopicsCmd,
		&StatsCmd,
		&TypesCmd,
	)
}
