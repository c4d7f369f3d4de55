package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/stepctl/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/stepctl/"
	device  = "+"
)

func init() {
	if val := os.Getenv("STEPCTL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "id", device, "Device ID to watch, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := telemetry.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	q.Sub(device+"/"+telemetry.MetaTopic, func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: offline", strings.TrimSuffix(topic, "/"+telemetry.MetaTopic))
			return
		}
		log.Printf("%s: %s", topic, string(payload))
	})
	q.Sub(device+"/"+telemetry.EventsTopic, func(topic string, payload []byte) {
		ev, err := telemetry.DecodeEvent(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s", topic, ev.Kind, ev)
	})
	<-(chan struct{})(nil)
}
