package parser

import (
	"github.com/sipware/sipcore/sip"
)

// paramScanState is a position in the ;key=value / ;key;key grammar shared
// by URI params and most header params.
type paramScanState int

const (
	scanKeyStart paramScanState = iota
	scanAfterKey
	scanValue
	scanQuotedValue
)

// UnmarshalParams scans s for separator-delimited key[=value] pairs up to
// (but not including) the first rune matching ending, appending each into
// p. It returns how many bytes of s were consumed. A quoted value may
// itself contain separator or ending runes without breaking the scan.
func UnmarshalParams(s string, separator rune, ending rune, p *sip.HeaderParams) (consumed int, err error) {
	var keyStart, eq, quoteStart int = 0, 0, -1
	state := scanKeyStart
	consumed = len(s)

	for i, c := range s {
		if c == ending && state != scanQuotedValue {
			consumed = i
			break
		}

		switch state {
		case scanKeyStart:
			if c == separator {
				// The separator right after a closing quote.
				continue
			}
			eq = 0
			keyStart = i
			state = scanAfterKey

		case scanAfterKey:
			if c == separator {
				// A flag-style param ("lr") with no '=' at all.
				p.Add(s[keyStart:i], "")
				state = scanKeyStart
				continue
			}
			if c != '=' {
				continue
			}
			eq = i
			state = scanValue

		case scanValue:
			switch c {
			case '"':
				state = scanQuotedValue
				quoteStart = i
			case separator:
				p.Add(s[keyStart:eq], s[eq+1:i])
				keyStart = eq + 1
				state = scanKeyStart
			}

		case scanQuotedValue:
			if c != '"' {
				continue
			}
			p.Add(s[keyStart:eq], s[quoteStart+1:i])
			// The pair is stored; leave nothing for the end-of-input check.
			keyStart, eq = len(s), 0
			state = scanKeyStart
		}
	}

	// The trailing pair (or flag) isn't terminated by a separator, so it's
	// only added once the loop ends.
	if eq > 0 && keyStart < eq {
		p.Add(s[keyStart:eq], s[eq+1:consumed])
	}
	if eq == 0 && keyStart < consumed {
		p.Add(s[keyStart:], "")
	}

	return consumed, nil
}
