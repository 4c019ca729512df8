package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/config"
	"github.com/samsamfire/godiag/pkg/hardware"
	"github.com/samsamfire/godiag/pkg/kwp2000"
	"github.com/samsamfire/godiag/pkg/obd2"
	"github.com/samsamfire/godiag/pkg/protocol"
	"github.com/samsamfire/godiag/pkg/session"
	"github.com/samsamfire/godiag/pkg/uds"

	_ "github.com/samsamfire/godiag/pkg/hardware/slcan"
	_ "github.com/samsamfire/godiag/pkg/hardware/socketcan"
	_ "github.com/samsamfire/godiag/pkg/hardware/virtual"
)

var (
	defaultSendID = uint64(0x7E0)
	defaultRecvID = uint64(0x7E8)
)

func main() {
	backend := flag.String("b", "socketcan", "hardware backend: socketcan, slcan, virtual")
	device := flag.String("d", "can0", "device name, e.g. can0 or /dev/ttyUSB0")
	protoName := flag.String("p", "uds", "protocol: uds, kwp2000, obd2")
	sendID := flag.Uint64("send", defaultSendID, "request CAN id")
	recvID := flag.Uint64("recv", defaultRecvID, "response CAN id")
	profilePath := flag.String("profile", "", "optional ini session profile")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	scanner, err := hardware.NewScanner(*backend, nil)
	if err != nil {
		log.Fatalf("creating scanner: %v", err)
	}
	dev, err := scanner.OpenDeviceByName(*device)
	if err != nil {
		log.Fatalf("opening device %v: %v", *device, err)
	}
	defer dev.Close()
	ch, err := dev.IsoTpChannel(false)
	if err != nil {
		log.Fatalf("opening ISO-TP channel: %v", err)
	}

	cfg := channel.DefaultIsoTpSettings()
	basic := session.BasicOptions{
		SendID:   uint32(*sendID),
		RecvID:   uint32(*recvID),
		Timeouts: session.DefaultTimeouts(),
	}
	var advanced *session.AdvancedOptions
	if *profilePath != "" {
		profile, err := config.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("loading profile: %v", err)
		}
		cfg = profile.IsoTp
		basic = profile.Basic
		advanced = profile.Advanced
	}

	var proto protocol.Protocol
	switch *protoName {
	case "uds":
		proto = uds.New()
	case "kwp2000":
		proto = kwp2000.New()
	case "obd2":
		proto = obd2.New()
	default:
		log.Fatalf("unknown protocol %v", *protoName)
	}

	sess, err := session.New(proto, ch, cfg, basic, advanced, nil)
	if err != nil {
		log.Fatalf("opening session: %v", err)
	}
	defer sess.Close()

	switch *protoName {
	case "obd2":
		resp, err := sess.SendCommandWithResponse(obd2.SidRequestVehicleInfo, obd2.InfoVin)
		if err != nil {
			log.Fatalf("requesting VIN: %v", err)
		}
		vin, err := obd2.DecodeVIN(resp)
		if err != nil {
			log.Fatalf("decoding VIN: %v", err)
		}
		fmt.Printf("VIN: %s\n", vin)
		if resp, err := sess.SendCommandWithResponse(obd2.SidShowStoredDTCs); err == nil {
			dtcs, err := obd2.DecodeStoredDTCs(resp)
			if err != nil {
				log.Warnf("decoding stored DTCs: %v", err)
			}
			for _, dtc := range dtcs {
				fmt.Printf("DTC: %s\n", dtc.Name())
			}
		}
	case "uds":
		resp, err := sess.SendCommandWithResponse(uds.SidReadDataByIdentifier, 0xF1, 0x90)
		if err != nil {
			log.Fatalf("reading VIN identifier: %v", err)
		}
		if len(resp) <= 3 {
			log.Fatal("response too short")
		}
		fmt.Printf("VIN: %s\n", string(resp[3:]))
	case "kwp2000":
		resp, err := sess.SendCommandWithResponse(kwp2000.SidReadEcuIdentification, 0x90)
		if err != nil {
			log.Fatalf("reading ECU identification: %v", err)
		}
		fmt.Printf("ECU identification: %s\n", hex.EncodeToString(resp))
	}
	os.Exit(0)
}
