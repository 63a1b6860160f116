package hwio

func GetBit8(v uint8, n uint) bool {
	return v>>n&0x01 != 0
}

// BoolToBit8 returns 1 shifted to bit n if b is true, 0 otherwise.
func BoolToBit8(b bool, n uint) uint8 {
	if b {
		return 1 << n
	}
	return 0
}
