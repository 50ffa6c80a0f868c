package pinout

import (
	"errors"
	"fmt"
)

// ReleaseBit is set on the serial wire to signal a released input or an LED
// switched off, so no code may use it.
const ReleaseBit byte = 0x80

type role struct {
	name  string
	value byte
}

func pinRoles() []role {
	return []role{
		{"LED_PIN_ELETRO", LED_PIN_ELETRO},
		{"LED_PIN_MEC", LED_PIN_MEC},
		{"LED_PIN_PGN", LED_PIN_PGN},
		{"LED_PIN_METAL", LED_PIN_METAL},
		{"BUTTON_PIN_ELETRO", BUTTON_PIN_ELETRO},
		{"BUTTON_PIN_MEC", BUTTON_PIN_MEC},
		{"BUTTON_PIN_PGN", BUTTON_PIN_PGN},
		{"BUTTON_PIN_METAL", BUTTON_PIN_METAL},
		{"INFRARED_PIN", INFRARED_PIN},
	}
}

func lcdRoles() []role {
	return []role{
		{"LCD_PIN_ELETRO", LCD_PIN_ELETRO},
		{"LCD_PIN_MEC", LCD_PIN_MEC},
		{"LCD_PIN_PGN", LCD_PIN_PGN},
		{"LCD_PIN_METAL", LCD_PIN_METAL},
	}
}

// Validate checks that no two roles share a pin, that the LCD codes are
// distinct, and that LCD codes and pins do not collide on the serial wire.
func Validate() error {
	return validate(pinRoles(), lcdRoles())
}

func validate(pins, lcds []role) error {
	var errs []error

	errs = append(errs, duplicates("pin", pins)...)
	errs = append(errs, duplicates("LCD code", lcds)...)

	owner := make(map[byte]string, len(pins))
	for _, p := range pins {
		owner[p.value] = p.name
	}
	for _, all := range [][]role{pins, lcds} {
		for _, r := range all {
			if r.value&ReleaseBit != 0 {
				errs = append(errs, fmt.Errorf("%s = %#x uses the release bit", r.name, r.value))
			}
		}
	}
	for _, l := range lcds {
		if name, ok := owner[l.value]; ok {
			errs = append(errs, fmt.Errorf("%s collides with %s on value %d", l.name, name, l.value))
		}
	}

	return errors.Join(errs...)
}

func duplicates(kind string, roles []role) []error {
	var errs []error
	seen := make(map[byte]string, len(roles))
	for _, r := range roles {
		if prev, ok := seen[r.value]; ok {
			errs = append(errs, fmt.Errorf("%s %d shared by %s and %s", kind, r.value, prev, r.name))
			continue
		}
		seen[r.value] = r.name
	}
	return errs
}
