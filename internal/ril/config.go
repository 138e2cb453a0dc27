package ril

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("ril: invalid config")

// Config holds engine limits.
type Config struct {
	SMSQueueSlots int
	MaxPDUBytes   int
	MaxUSSDBytes  int
	MaxNVIOBytes  int
}

func DefaultConfig() Config {
	return Config{
		SMSQueueSlots: 10,
		MaxPDUBytes:   0xff,
		MaxUSSDBytes:  0xc0,
		MaxNVIOBytes:  256 * 1024,
	}
}

func (c Config) Validate() error {
	if c.SMSQueueSlots <= 0 {
		return fmt.Errorf("%w: sms queue slots must be positive", ErrInvalidConfig)
	}
	if c.MaxPDUBytes <= 0 || c.MaxPDUBytes > 0xff {
		return fmt.Errorf("%w: max pdu bytes must be in 1..255", ErrInvalidConfig)
	}
	if c.MaxUSSDBytes <= 0 || c.MaxUSSDBytes > 0xff {
		return fmt.Errorf("%w: max ussd bytes must be in 1..255", ErrInvalidConfig)
	}
	if c.MaxNVIOBytes <= 0 {
		return fmt.Errorf("%w: max nv io bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
