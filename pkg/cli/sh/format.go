package sh

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/firmata.go/pkg/firmata"
)

// FormatPin prints a pin into friendly string for display.
func FormatPin(index int, pin firmata.Pin, analogStart uint8) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%3d", index)
	if pin.Analog && index >= int(analogStart) {
		fmt.Fprintf(&w, " A%-2d", index-int(analogStart))
	} else {
		w.WriteString("    ")
	}
	fmt.Fprintf(&w, " %-7s %5d", pin.Mode, pin.Value)
	modes := make([]string, len(pin.Modes))
	for n, m := range pin.Modes {
		modes[n] = fmt.Sprintf("%s/%d", m.Mode, m.Resolution)
	}
	fmt.Fprintf(&w, "  [%s]", strings.Join(modes, " "))
	return w.String()
}

// PrintPins prints all pins of a snapshot.
func PrintPins(c *ishell.Context, state firmata.BoardState) {
	for n, pin := range state.Pins {
		c.Println(FormatPin(n, pin, state.AnalogPinStart))
	}
}
