package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rosserial.go/pkg/bridge/mqtt"
	"github.com/robotalks/rosserial.go/pkg/env"
	"github.com/robotalks/rosserial.go/pkg/framework"
	"github.com/robotalks/rosserial.go/pkg/msgs"
)

var connectTimeout = 10 * time.Second

func init() {
	env.SetupFlags()
	flag.DurationVar(&connectTimeout, "mqtt_timeout", connectTimeout, "MQTT connect timeout")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.MustNewConfig()
	broker, err := mqtt.ParseBrokerURL(conf.MQTTBrokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	codec, err := mqtt.CodecByName(broker.Encoding)
	if err != nil {
		log.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, "rosserial-"+conf.NodeID)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(connectTimeout); err != nil {
		log.Fatalf("connect %s: %v", broker.Server, err)
	}
	defer q.Close()

	node := conf.MustNewNode()
	bridge := mqtt.NewBridge(q, node, conf.NodeID)
	bridge.Codec = codec
	node.Observer = bridge

	for _, name := range conf.Subscriptions {
		topic := name
		err = node.Subscribe(topic, msgs.StringType, func(msg msgs.Message) {
			glog.Infof("%s: %s", topic, msg.(*msgs.String).Data)
		}, conf.BufferSize)
		if err != nil {
			log.Fatalf("subscribe %s: %v", topic, err)
		}
	}

	glog.Infof("mirroring %s to %s%s/", conf.Port, broker.TopicPrefix, conf.NodeID)
	if err = framework.NewRunner().HandleSignals().Go(node, bridge).Wait(); err != nil {
		glog.Error(err)
	}
}
