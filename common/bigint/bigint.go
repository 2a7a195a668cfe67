package bigint

import "math/big"

// WeiToETH divides the wei value by 10^18 to get a number in ether
func WeiToETH(wei *big.Int) *big.Float {
	f := new(big.Float)
	f.SetString(wei.String())
	return f.Quo(f, big.NewFloat(1e18))
}
