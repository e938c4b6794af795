package utils

import "encoding/hex"

// UTFBytesToString converts UTF-8 bytes to string
func UTFBytesToString(data []byte) string {
	return string(data)
}

// BytesToHex converts bytes to hex string
func BytesToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// HexToBytes converts hex string to bytes
func HexToBytes(hexStr string) ([]byte, error) {
	return hex.DecodeString(hexStr)
}
