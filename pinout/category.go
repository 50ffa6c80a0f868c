package pinout

import (
	"fmt"
	"strings"
)

// Category is one of the material bins of the station.
type Category int

const (
	Eletro Category = iota
	Mec
	PGN
	Metal
)

type wiring struct {
	name   string
	lcd    byte
	led    byte
	button byte
}

var wirings = [...]wiring{
	Eletro: {name: "eletro", lcd: LCD_PIN_ELETRO, led: LED_PIN_ELETRO, button: BUTTON_PIN_ELETRO},
	Mec:    {name: "mec", lcd: LCD_PIN_MEC, led: LED_PIN_MEC, button: BUTTON_PIN_MEC},
	PGN:    {name: "pgn", lcd: LCD_PIN_PGN, led: LED_PIN_PGN, button: BUTTON_PIN_PGN},
	Metal:  {name: "metal", lcd: LCD_PIN_METAL, led: LED_PIN_METAL, button: BUTTON_PIN_METAL},
}

// Categories returns all categories in declaration order.
func Categories() []Category {
	return []Category{Eletro, Mec, PGN, Metal}
}

func (c Category) valid() bool {
	return c >= Eletro && c <= Metal
}

func (c Category) String() string {
	if !c.valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return wirings[c].name
}

// LCD, LED and Button return 0 for a value outside Categories(). No role is
// wired to 0.
func (c Category) LCD() byte    { return c.wiring().lcd }
func (c Category) LED() byte    { return c.wiring().led }
func (c Category) Button() byte { return c.wiring().button }

func (c Category) wiring() wiring {
	if !c.valid() {
		return wiring{}
	}
	return wirings[c]
}

// ParseCategory is the case-insensitive inverse of Category.String.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if strings.EqualFold(name, wirings[c].name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

func CategoryForButton(pin byte) (Category, bool) {
	for _, c := range Categories() {
		if wirings[c].button == pin {
			return c, true
		}
	}
	return 0, false
}

func CategoryForLED(pin byte) (Category, bool) {
	for _, c := range Categories() {
		if wirings[c].led == pin {
			return c, true
		}
	}
	return 0, false
}
