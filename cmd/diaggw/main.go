package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/gateway"
	"github.com/samsamfire/godiag/pkg/hardware"
	"github.com/samsamfire/godiag/pkg/isotp"
	"github.com/samsamfire/godiag/pkg/session"
	"github.com/samsamfire/godiag/pkg/uds"

	_ "github.com/samsamfire/godiag/pkg/hardware/slcan"
	_ "github.com/samsamfire/godiag/pkg/hardware/socketcan"
	_ "github.com/samsamfire/godiag/pkg/hardware/virtual"
)

func main() {
	backend := flag.String("b", "socketcan", "hardware backend: socketcan, slcan, virtual")
	device := flag.String("d", "can0", "device name")
	addr := flag.String("l", ":8090", "gateway listen address")
	sendID := flag.Uint64("send", 0x7E0, "request CAN id")
	recvID := flag.Uint64("recv", 0x7E8, "response CAN id")
	flag.Parse()

	scanner, err := hardware.NewScanner(*backend, nil)
	if err != nil {
		log.Fatalf("creating scanner: %v", err)
	}
	dev, err := scanner.OpenDeviceByName(*device)
	if err != nil {
		log.Fatalf("opening device %v: %v", *device, err)
	}
	defer dev.Close()

	// Run the software ISO-TP engine directly so the gateway can also
	// stream the raw CAN traffic from the passthrough facade
	rawCan, err := dev.CanChannel()
	if err != nil {
		log.Fatalf("opening CAN channel: %v", err)
	}
	engine := isotp.NewEngine(rawCan, nil)
	isoTp := engine.IsoTpChannel()
	trace := engine.CanChannel()

	sess, err := session.New(uds.New(), isoTp, channel.DefaultIsoTpSettings(), session.BasicOptions{
		SendID:   uint32(*sendID),
		RecvID:   uint32(*recvID),
		Timeouts: session.DefaultTimeouts(),
	}, nil, nil)
	if err != nil {
		log.Fatalf("opening session: %v", err)
	}
	defer sess.Close()

	if err := trace.Open(); err != nil {
		log.Warnf("opening trace facade: %v", err)
	}

	gw := gateway.NewServer(nil)
	gw.AddSession(*device, "UDS", sess)
	gw.SetTraceSource(trace)
	log.Infof("gateway listening on %v", *addr)
	if err := gw.ListenAndServe(*addr); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}
