package env

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	return writeConfigAs(t, "rosserial.toml", content)
}

func writeConfigAs(t *testing.T, name, content string) string {
	fn := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestLoadFile(t *testing.T) {
	fn := writeConfig(t, `
port = "tcp://robot:11411"
baud = 115200
read_timeout = "250ms"
buffer_size = 512
subscribe = ["chatter", "greet"]
`)
	conf := Config{Port: "/dev/ttyUSB0", NodeID: "abc", MaxPayload: 300}
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, Config{
		Port:          "tcp://robot:11411",
		Baudrate:      115200,
		ReadTimeout:   250 * time.Millisecond,
		BufferSize:    512,
		MaxPayload:    300,
		NodeID:        "abc",
		Subscriptions: []string{"chatter", "greet"},
	}, conf)
}

func TestLoadFileKeepsExplicit(t *testing.T) {
	fn := writeConfig(t, `
port = "tcp://robot:11411"
node_id = "from-file"
`)
	conf := Config{Port: "serial:///dev/ttyACM0", NodeID: "abc"}
	require.NoError(t, conf.LoadFile(fn, "port"))
	require.Equal(t, "serial:///dev/ttyACM0", conf.Port)
	require.Equal(t, "from-file", conf.NodeID)
}

func TestLoadFileYAML(t *testing.T) {
	fn := writeConfigAs(t, "rosserial.yaml", `
port: ws://robot:9090/serial
read_timeout: 1s
mqtt_url: mqtt://broker:1883/ros/
subscribe:
  - chatter
`)
	conf := Config{Port: "/dev/ttyUSB0", Baudrate: 57600}
	require.NoError(t, conf.LoadFile(fn, "mqtt_url"))
	require.Equal(t, Config{
		Port:          "ws://robot:9090/serial",
		Baudrate:      57600,
		ReadTimeout:   time.Second,
		Subscriptions: []string{"chatter"},
	}, conf)
}

func TestLoadFileErrors(t *testing.T) {
	conf := Config{}
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.Error(t, conf.LoadFile(writeConfig(t, `port = `)))
	require.Error(t, conf.LoadFile(writeConfigAs(t, "bad.yml", "port: [")))
}

func TestStringList(t *testing.T) {
	var l stringList
	require.NoError(t, l.Set("a, b,,c"))
	require.NoError(t, l.Set("d"))
	require.Equal(t, stringList{"a", "b", "c", "d"}, l)
	require.Equal(t, "a,b,c,d", l.String())
}

func TestNewNode(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if conn, err := ln.Accept(); err == nil {
			defer conn.Close()
			conn.Read(make([]byte, 1))
		}
	}()

	conf := Config{Port: "tcp://" + ln.Addr().String(), MaxPayload: 128, DialTimeout: time.Second}
	node, err := conf.NewNode()
	require.NoError(t, err)
	defer node.Close()
	require.Equal(t, 128, node.MaxPayload)

	_, err = (&Config{}).NewNode()
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	conf, err := NewConfig()
	require.NoError(t, err)
	require.NotEmpty(t, conf.NodeID)
	require.NotEmpty(t, MachineID())
	require.Equal(t, Default().Port, conf.Port)
}
