package types

import "periph.io/x/conn/v3/spi"

// Open-time configuration per peripheral kind. Zero values select the
// board/device default.

type GPIOConfig struct {
	Direction Direction `json:"direction" yaml:"direction"`
	Initial   int       `json:"initial,omitempty" yaml:"initial,omitempty"` // only used with DirOut
}

type I2CConfig struct {
	Address uint8 `json:"address" yaml:"address"` // 7-bit
}

type SPIConfig struct {
	ChipSelect  int      `json:"chip_select,omitempty" yaml:"chip_select,omitempty"`
	FrequencyHz int      `json:"frequency_hz,omitempty" yaml:"frequency_hz,omitempty"`
	WordBits    int      `json:"word_bits,omitempty" yaml:"word_bits,omitempty"` // 0 => unset, must be set before transfers
	Mode        spi.Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

type PWMConfig struct {
	PeriodUS int `json:"period_us,omitempty" yaml:"period_us,omitempty"`
}

type UARTConfig struct {
	Baud int `json:"baud,omitempty" yaml:"baud,omitempty"`
}
