package main

import (
	"fmt"
	"github.com/jd3nn1s/overdrive"
	"github.com/pterm/pterm"
)

// printer writes events to stdout.
type printer struct{}

func (printer) Publish(e overdrive.Event) {
	src := e.Source()
	switch ev := e.(type) {
	case overdrive.CarReady:
		_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Vehicle", "Model", "Identifier", "Product", "Firmware"},
			{
				src.ID,
				src.Identity.DisplayName(),
				fmt.Sprintf("0x%08x", src.Identity.Identifier),
				fmt.Sprintf("0x%04x", src.Identity.ProductID),
				fmt.Sprintf("0x%04x", ev.FirmwareVersion),
			},
		}).Render()
	case overdrive.CarStatus:
		s := ev.State
		pterm.Info.Printfln("%s piece %d pos %d offset %.1fmm speed %dmm/s battery %d%%",
			src.ID, s.Current.PieceID, s.Current.Pos, s.Offset, s.Speed, s.BatteryLevel)
	case overdrive.CarEvent:
		pterm.Info.Printfln("%s message 0x%02x %+v", src.ID, uint8(ev.Message.ID()), ev.Message)
	case overdrive.StoppedAtStart:
		pterm.Success.Printfln("%s stopped at the start line", src.ID)
	case overdrive.DeviceDisconnected:
		pterm.Warning.Printfln("%s %s", src.ID, e.Name())
	default:
		pterm.Success.Printfln("%s %s", src.ID, e.Name())
	}
}
