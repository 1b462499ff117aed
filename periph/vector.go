package periph

import "fmt"

// Vector is an interrupt vector number. Vector n lives at word address 2n of
// the vector table; a lower number has higher priority.
type Vector uint8

// ATmega328P interrupt vectors.
const (
	VectorReset Vector = iota
	VectorInt0
	VectorInt1
	VectorPCInt0
	VectorPCInt1
	VectorPCInt2
	VectorWDT
	VectorTimer2CompA
	VectorTimer2CompB
	VectorTimer2Ovf
	VectorTimer1Capt
	VectorTimer1CompA
	VectorTimer1CompB
	VectorTimer1Ovf
	VectorTimer0CompA
	VectorTimer0CompB
	VectorTimer0Ovf
	VectorSPI
	VectorUSARTRX
	VectorUSARTUDRE
	VectorUSARTTX
	VectorADC
	VectorEEReady
	VectorAnalogComp
	VectorTWI
	VectorSPMReady

	NumVectors
)

var vectorNames = [NumVectors]string{
	"RESET", "INT0", "INT1", "PCINT0", "PCINT1", "PCINT2", "WDT",
	"TIMER2_COMPA", "TIMER2_COMPB", "TIMER2_OVF",
	"TIMER1_CAPT", "TIMER1_COMPA", "TIMER1_COMPB", "TIMER1_OVF",
	"TIMER0_COMPA", "TIMER0_COMPB", "TIMER0_OVF",
	"SPI_STC", "USART_RX", "USART_UDRE", "USART_TX", "ADC",
	"EE_READY", "ANALOG_COMP", "TWI", "SPM_READY",
}

func (v Vector) String() string {
	if v < NumVectors {
		return vectorNames[v]
	}
	return fmt.Sprintf("VECTOR_%d", uint8(v))
}

// interruptSource is a peripheral that can raise interrupts.
type interruptSource interface {
	// pending returns the highest-priority vector it has pending.
	pending() (Vector, bool)
	// acknowledge is called when the CPU enters the handler for v. It
	// reports whether v belonged to this source.
	acknowledge(v Vector) bool
}
