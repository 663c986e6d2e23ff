// Package ext4cli holds the small formatting and exit-status helpers
// shared by the cat, ls, and dump command-line drivers. None of it is
// part of the core reader; it exists only so the three thin CLIs
// don't each reinvent --numbers rendering and table output.
package ext4cli

import (
	"fmt"
	"os"

	"github.com/sisatech/tablewriter"
)

// NumbersMode selects how PrintableSize renders byte counts.
type NumbersMode int

const (
	NumbersShort NumbersMode = iota
	NumbersDecimal
	NumbersHex
)

var numbersMode = NumbersShort

// SetNumbersMode parses the --numbers flag value shared by ls and dump.
func SetNumbersMode(s string) error {
	switch s {
	case "", "short":
		numbersMode = NumbersShort
	case "dec":
		numbersMode = NumbersDecimal
	case "hex":
		numbersMode = NumbersHex
	default:
		return fmt.Errorf("unrecognised --numbers value %q (want short, dec, or hex)", s)
	}
	return nil
}

// PrintableSize renders a byte count per the current NumbersMode.
type PrintableSize int64

func (s PrintableSize) String() string {
	switch numbersMode {
	case NumbersDecimal:
		return fmt.Sprintf("%d", int64(s))
	case NumbersHex:
		return fmt.Sprintf("0x%x", int64(s))
	default:
		return humanSize(int64(s))
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// PlainTable renders rows as a borderless table to stdout, the format
// used by ls -l's directory listing.
func PlainTable(rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}
