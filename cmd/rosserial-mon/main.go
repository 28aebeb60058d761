package main

import (
	"flag"
	"log"
	"time"

	"github.com/robotalks/rosserial.go/pkg/bridge/mqtt"
	"github.com/robotalks/rosserial.go/pkg/cli/sh"
	"github.com/robotalks/rosserial.go/pkg/env"
)

var (
	mqttURL = env.Default().MQTTBrokerURL
	filter  = "#"
)

func init() {
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&filter, "filter", filter, "Topic filter below the prefix, e.g. NODE/rx/#.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	broker, err := mqtt.ParseBrokerURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	codec, err := mqtt.CodecByName(broker.Encoding)
	if err != nil {
		log.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(mqttURL, "")
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(10 * time.Second); err != nil {
		log.Fatalln(err)
	}

	q.Sub(filter, mqtt.Handler(func(topic string, payload []byte) {
		var envelope mqtt.Envelope
		if err := codec.Unmarshal(payload, &envelope); err != nil {
			log.Printf("%s: bad envelope: %v", topic, err)
			return
		}
		msg, err := envelope.Decode()
		if err != nil {
			log.Printf("%s: (id=%d, %d bytes) %v", topic, envelope.TopicID, len(envelope.Payload), err)
			return
		}
		log.Printf("%s: [%d] %s", topic, envelope.TopicID, sh.FormatMessage(msg))
	}))
	<-(chan struct{})(nil)
}
