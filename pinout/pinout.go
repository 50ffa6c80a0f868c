// Package pinout maps the logical roles of the cap counter board to the
// Arduino pins and LCD selector codes they are wired to.
package pinout

// LCD selector codes, one per category.
const (
	LCD_PIN_ELETRO byte = 0x46
	LCD_PIN_MEC    byte = 0x45
	LCD_PIN_PGN    byte = 0x44
	LCD_PIN_METAL  byte = 0x43
)

// LED output pins.
const (
	LED_PIN_ELETRO byte = 13
	LED_PIN_MEC    byte = 12
	LED_PIN_PGN    byte = 11
	LED_PIN_METAL  byte = 10
)

// Button input pins.
const (
	BUTTON_PIN_ELETRO byte = 7
	BUTTON_PIN_MEC    byte = 6
	BUTTON_PIN_PGN    byte = 5
	BUTTON_PIN_METAL  byte = 4
)

// INFRARED_PIN is shared by all categories.
const INFRARED_PIN byte = 3

// Pins returns every constant keyed by its name.
func Pins() map[string]byte {
	return map[string]byte{
		"LCD_PIN_ELETRO":    LCD_PIN_ELETRO,
		"LCD_PIN_MEC":       LCD_PIN_MEC,
		"LCD_PIN_PGN":       LCD_PIN_PGN,
		"LCD_PIN_METAL":     LCD_PIN_METAL,
		"LED_PIN_ELETRO":    LED_PIN_ELETRO,
		"LED_PIN_MEC":       LED_PIN_MEC,
		"LED_PIN_PGN":       LED_PIN_PGN,
		"LED_PIN_METAL":     LED_PIN_METAL,
		"BUTTON_PIN_ELETRO": BUTTON_PIN_ELETRO,
		"BUTTON_PIN_MEC":    BUTTON_PIN_MEC,
		"BUTTON_PIN_PGN":    BUTTON_PIN_PGN,
		"BUTTON_PIN_METAL":  BUTTON_PIN_METAL,
		"INFRARED_PIN":      INFRARED_PIN,
	}
}
