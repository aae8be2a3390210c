package core

import "time"

// Measurement is one block-propagation observation: a block was sealed
// somewhere in the fleet and later imported by Node.
type Measurement struct {
	Node     string    `json:"node"`
	Height   uint64    `json:"height"`
	Sealed   time.Time `json:"sealed"`
	Imported time.Time `json:"imported"`
}

// Delta returns the propagation time. It is negative when the importing
// node's clock ran behind the sealing node's.
func (m Measurement) Delta() time.Duration {
	return m.Imported.Sub(m.Sealed)
}
