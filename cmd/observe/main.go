package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxeltherm/internal/observerproto"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		volumes = flag.String("volumes", "", "comma separated volume ids (empty: all)")
		every   = flag.Int("every", 10, "one frame per N simulation ticks")
		lo      = flag.Float64("range_lo", 0, "temperature level range low end")
		hi      = flag.Float64("range_hi", 0, "temperature level range high end (<= range_lo: no levels)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[observe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMsg(*volumes, *every, *lo, *hi)); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var received uint64
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		received += uint64(len(msg))
		var frame observerproto.FrameMsg
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != observerproto.TypeFrame {
			continue
		}
		logger.Printf("FRAME tick=%s size=%s total=%s", humanize.Comma(int64(frame.Tick)), humanize.Bytes(uint64(len(msg))), humanize.Bytes(received))
		for _, line := range summarize(frame) {
			logger.Print(line)
		}
	}
}

func subscribeMsg(volumes string, every int, lo, hi float64) observerproto.SubscribeMsg {
	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Every:           every,
	}
	for _, id := range strings.Split(volumes, ",") {
		if id = strings.TrimSpace(id); id != "" {
			sub.Volumes = append(sub.Volumes, id)
		}
	}
	if hi > lo {
		sub.Range = &[2]float64{lo, hi}
	}
	return sub
}

// summarize reports per-volume temperature extremes and, when levels are present, the share of
// cells above the middle of the range.
func summarize(f observerproto.FrameMsg) []string {
	out := make([]string, 0, len(f.Volumes)+len(f.Bodies))
	for _, v := range f.Volumes {
		if len(v.Cells) == 0 {
			out = append(out, fmt.Sprintf("  %s: no cells", v.ID))
			continue
		}
		lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
		hot, levels := 0, 0
		for _, c := range v.Cells {
			lo = math.Min(lo, c.Temperature)
			hi = math.Max(hi, c.Temperature)
			sum += c.Temperature
			if c.Level != nil {
				levels++
				if *c.Level > 0.5 {
					hot++
				}
			}
		}
		line := fmt.Sprintf("  %s: cells=%d min=%.2f max=%.2f mean=%.2f", v.ID, len(v.Cells), lo, hi, sum/float64(len(v.Cells)))
		if levels > 0 {
			line += fmt.Sprintf(" hot=%d%%", hot*100/levels)
		}
		out = append(out, line)
	}
	for _, b := range f.Bodies {
		in := b.Volume
		if in == "" {
			in = "-"
		}
		out = append(out, fmt.Sprintf("  body %s in=%s temp=%.2f", b.ID, in, b.Temperature))
	}
	return out
}
