package domain

import "strings"

type ShippingProgram string

const (
	ShippingPrime    ShippingProgram = "PRIME"
	ShippingNonPrime ShippingProgram = "NONPRIME"
	ShippingPrimeNow ShippingProgram = "PRIMENOW"
)

// ParseShippingProgram normalizes s. Unknown values are kept as is
// and never match a known [PrimeOption] except [PrimeOptionAll].
func ParseShippingProgram(s string) ShippingProgram {
	return ShippingProgram(strings.ToUpper(strings.TrimSpace(s)))
}

// A PrimeOption is the shipping eligibility filter of a listing.
type PrimeOption string

const (
	PrimeOptionAll      PrimeOption = "ALL"
	PrimeOptionPrime    PrimeOption = "PRIME"
	PrimeOptionPrimeNow PrimeOption = "PRIMENOW"
	PrimeOptionNonPrime PrimeOption = "NONPRIME"
)

// ParsePrimeOption returns [PrimeOptionAll] for the empty string.
func ParsePrimeOption(s string) (PrimeOption, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PrimeOptionAll, nil
	}
	switch o := PrimeOption(s); o {
	case PrimeOptionAll, PrimeOptionPrime, PrimeOptionPrimeNow, PrimeOptionNonPrime:
		return o, nil
	}
	return "", ErrUnknownOption
}

func (o PrimeOption) Matches(sp ShippingProgram) bool {
	switch o {
	case PrimeOptionAll:
		return true
	case PrimeOptionPrime:
		return sp == ShippingPrime
	case PrimeOptionPrimeNow:
		return sp == ShippingPrimeNow
	case PrimeOptionNonPrime:
		return sp == ShippingNonPrime
	}
	return false
}
