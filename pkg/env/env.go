// Package env builds rosserial nodes from environment, flags and
// configuration files.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/rosserial.go/pkg/rosserial"
	"github.com/robotalks/rosserial.go/pkg/transport"
)

// Config provides common options to setup a rosserial node.
type Config struct {
	// File is an optional TOML or YAML file overlaying the settings below.
	File string `toml:"-" yaml:"-"`

	// Port is the transport URL, see package transport.
	Port        string        `toml:"port" yaml:"port"`
	Baudrate    int           `toml:"baud" yaml:"baud"`
	ReadTimeout time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	DialTimeout time.Duration `toml:"dial_timeout" yaml:"dial_timeout"`
	// BufferSize is announced for topics without explicit size.
	BufferSize int `toml:"buffer_size" yaml:"buffer_size"`
	// MaxPayload limits received frames, 0 for no limit below 64KiB.
	MaxPayload int    `toml:"max_payload" yaml:"max_payload"`
	NodeID     string `toml:"node_id" yaml:"node_id"`

	// MQTTBrokerURL specifies the MQTT broker frames are mirrored to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `toml:"mqtt_url" yaml:"mqtt_url"`
	// Subscriptions lists std_msgs/String topics to subscribe.
	Subscriptions []string `toml:"subscribe" yaml:"subscribe"`
}

var defaultConfig = Config{
	Port:          "/dev/ttyUSB0",
	Baudrate:      transport.DefaultBaudrate,
	ReadTimeout:   100 * time.Millisecond,
	DialTimeout:   transport.DefaultDialTimeout,
	BufferSize:    rosserial.DefaultBufferSize,
	MQTTBrokerURL: "mqtt://localhost:1883/rosserial/",
}

func init() {
	if val := os.Getenv("ROSSERIAL_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("ROSSERIAL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baudrate = baud
		}
	}
	if val := os.Getenv("ROSSERIAL_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.File = os.Getenv("ROSSERIAL_CONFIG")
	if defaultConfig.NodeID = os.Getenv("ROSSERIAL_NODE_ID"); defaultConfig.NodeID == "" {
		defaultConfig.NodeID = MachineID()
	}
}

type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(val string) error {
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// SetupFlags sets command line flags.
// Flags are named after the TOML keys.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "TOML config file")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Transport URL or serial device")
	flag.IntVar(&defaultConfig.Baudrate, "baud", defaultConfig.Baudrate, "Serial baud rate")
	flag.DurationVar(&defaultConfig.ReadTimeout, "read_timeout", defaultConfig.ReadTimeout, "Transport read timeout")
	flag.DurationVar(&defaultConfig.DialTimeout, "dial_timeout", defaultConfig.DialTimeout, "Transport dial timeout")
	flag.IntVar(&defaultConfig.BufferSize, "buffer_size", defaultConfig.BufferSize, "Announced topic buffer size")
	flag.IntVar(&defaultConfig.MaxPayload, "max_payload", defaultConfig.MaxPayload, "Maximum received payload")
	flag.StringVar(&defaultConfig.NodeID, "node_id", defaultConfig.NodeID, "Node ID")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt_url", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.Var((*stringList)(&defaultConfig.Subscriptions), "subscribe", "Comma separated topics to subscribe")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
// When a config file is specified, it is applied beneath the flags
// given on the command line.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Subscriptions = append([]string(nil), defaultConfig.Subscriptions...)
	if conf.File == "" {
		return &conf, nil
	}
	var explicit []string
	flag.Visit(func(f *flag.Flag) {
		explicit = append(explicit, f.Name)
	})
	if err := conf.LoadFile(conf.File, explicit...); err != nil {
		return nil, err
	}
	return &conf, nil
}

// MustNewConfig creates a Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

var fields = map[string]func(dst, src *Config){
	"port":         func(dst, src *Config) { dst.Port = src.Port },
	"baud":         func(dst, src *Config) { dst.Baudrate = src.Baudrate },
	"read_timeout": func(dst, src *Config) { dst.ReadTimeout = src.ReadTimeout },
	"dial_timeout": func(dst, src *Config) { dst.DialTimeout = src.DialTimeout },
	"buffer_size":  func(dst, src *Config) { dst.BufferSize = src.BufferSize },
	"max_payload":  func(dst, src *Config) { dst.MaxPayload = src.MaxPayload },
	"node_id":      func(dst, src *Config) { dst.NodeID = src.NodeID },
	"mqtt_url":     func(dst, src *Config) { dst.MQTTBrokerURL = src.MQTTBrokerURL },
	"subscribe":    func(dst, src *Config) { dst.Subscriptions = src.Subscriptions },
}

// LoadFile overlays the settings defined in a TOML or YAML file,
// except keys listed in keep.
func (c *Config) LoadFile(path string, keep ...string) error {
	var (
		file    Config
		defined func(string) bool
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		defined, err = decodeYAML(path, &file)
	default:
		defined, err = decodeTOML(path, &file)
	}
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	kept := make(map[string]bool)
	for _, name := range keep {
		kept[name] = true
	}
	for name, copyField := range fields {
		if defined(name) && !kept[name] {
			copyField(c, &file)
		}
	}
	return nil
}

func decodeTOML(path string, conf *Config) (func(string) bool, error) {
	md, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		glog.Warningf("config %s: unknown keys %v", path, undecoded)
	}
	return func(key string) bool { return md.IsDefined(key) }, nil
}

func decodeYAML(path string, conf *Config) (func(string) bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys map[string]yaml.Node
	if err = yaml.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, err
	}
	for key := range keys {
		if _, ok := fields[key]; !ok {
			glog.Warningf("config %s: unknown key %s", path, key)
		}
	}
	return func(key string) bool {
		_, ok := keys[key]
		return ok
	}, nil
}

// TransportOptions derives the options to open the transport.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Baudrate:    c.Baudrate,
		ReadTimeout: c.ReadTimeout,
		DialTimeout: c.DialTimeout,
	}
}

// NewNode opens the transport and creates the node on it.
func (c *Config) NewNode() (*rosserial.Node, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("transport port must be specified")
	}
	rw, err := transport.Open(c.Port, c.TransportOptions())
	if err != nil {
		return nil, fmt.Errorf("open transport error: %w", err)
	}
	node := rosserial.NewNode(rw)
	node.MaxPayload = c.MaxPayload
	return node, nil
}

// MustNewNode creates the node and fails on error.
func (c *Config) MustNewNode() *rosserial.Node {
	node, err := c.NewNode()
	if err != nil {
		log.Fatalln(err)
	}
	return node
}
