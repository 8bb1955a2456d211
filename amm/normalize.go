// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

// pow10 holds every power of ten that fits in 64 bits
var pow10 = func() [maxDecimals + 1]uint64 {
	var p [maxDecimals + 1]uint64
	p[0] = 1
	for i := 1; i < len(p); i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// denormalize converts an amount at canonical precision into the native
// units of a mint with the given decimals. Scaling down truncates; scaling
// up fails on overflow.
func denormalize(amount uint64, canonical, decimals uint8) (uint64, error) {
	switch {
	case decimals == canonical:
		return amount, nil
	case decimals < canonical:
		diff := canonical - decimals
		if int(diff) >= len(pow10) {
			return 0, nil
		}
		return amount / pow10[diff], nil
	default:
		diff := decimals - canonical
		if int(diff) >= len(pow10) {
			if amount == 0 {
				return 0, nil
			}
			return 0, ErrMathOverflow
		}
		return checkedMul(amount, pow10[diff])
	}
}
