package common

import (
	"fmt"
)

var (
	byteUnits  = []string{"B", "KiB", "MiB", "GiB", "TiB"}
	countUnits = []string{"", "K", "M", "B", "T"}
)

// scale divides v by step until it drops below step or the units run out.
func scale(v, step float64, units []string) (float64, string) {
	i := 0
	for v >= step && i < len(units)-1 {
		v /= step
		i++
	}
	return v, units[i]
}

// StorageSize is a byte count printed with a binary unit, e.g. "1.50 KiB".
type StorageSize float64

func (s StorageSize) String() string {
	v, unit := scale(float64(s), 1024, byteUnits)
	return fmt.Sprintf("%.2f %s", v, unit)
}

// TerminalString implements log.TerminalStringer, the unit follows the
// number without a space.
func (s StorageSize) TerminalString() string {
	v, unit := scale(float64(s), 1024, byteUnits)
	return fmt.Sprintf("%.2f%s", v, unit)
}

// StorageCounter is a count printed with a decimal suffix, e.g. "2.50M".
type StorageCounter float64

func (s StorageCounter) String() string {
	v, unit := scale(float64(s), 1000, countUnits)
	return fmt.Sprintf("%.2f%s", v, unit)
}
